package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStageForStatus(t *testing.T) {
	cases := map[string]string{
		FileStatusUploaded:           FileStagePendingTeamLeader,
		FileStatusTeamLeaderApproved: FileStagePendingAdmin,
		FileStatusFinalApproved:      FileStagePublished,
		FileStatusRejectedByLeader:   FileStageRejectedByLeader,
		FileStatusRejectedByAdmin:    FileStageRejectedByAdmin,
		"bogus":                      "",
	}
	for status, want := range cases {
		assert.Equal(t, want, StageForStatus(status), "status %q", status)
	}
}

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "Waiting for team leader review", StatusLabel(FileStatusUploaded, FileStagePendingTeamLeader))
	assert.Equal(t, "Waiting for admin review", StatusLabel(FileStatusTeamLeaderApproved, FileStagePendingAdmin))
	assert.Equal(t, "Approved and published", StatusLabel(FileStatusFinalApproved, FileStagePublished))
	assert.Equal(t, "Rejected by team leader", StatusLabel(FileStatusRejectedByLeader, FileStageRejectedByLeader))
	assert.Equal(t, "Rejected by admin", StatusLabel(FileStatusRejectedByAdmin, FileStageRejectedByAdmin))
	assert.Equal(t, "Unknown", StatusLabel("weird", ""))
}

func TestFileIsTerminal(t *testing.T) {
	for _, status := range []string{FileStatusFinalApproved, FileStatusRejectedByLeader, FileStatusRejectedByAdmin} {
		f := File{Status: status}
		assert.True(t, f.IsTerminal(), "status %q", status)
	}
	for _, status := range []string{FileStatusUploaded, FileStatusTeamLeaderApproved} {
		f := File{Status: status}
		assert.False(t, f.IsTerminal(), "status %q", status)
	}
}
