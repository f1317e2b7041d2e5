package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidStudentNumber(t *testing.T) {
	valid := []string{"F1234", "a0000", "Z9999"}
	for _, number := range valid {
		require.True(t, ValidStudentNumber(number), number)
	}
	invalid := []string{"", "F123", "F12345", "1234F", "FF123", "F12a4", "Ｆ1234"}
	for _, number := range invalid {
		require.False(t, ValidStudentNumber(number), number)
	}
}

func TestStatusAndTypeLabels(t *testing.T) {
	require.Equal(t, "処理中", RequestStatusPending.Label())
	require.Equal(t, "承認済", RequestStatusApproved.Label())
	require.Equal(t, "差戻し", RequestStatusRejected.Label())
	require.Equal(t, "出欠", CorrectionTypeAttendance.Label())
	require.Equal(t, "成績", CorrectionTypeGrade.Label())
}

func TestValidGradingPeriod(t *testing.T) {
	for _, period := range GradingPeriods {
		require.True(t, ValidGradingPeriod(period), period)
	}
	require.False(t, ValidGradingPeriod("後期追試"))
}

func TestAttendanceStatusVocabulary(t *testing.T) {
	for _, status := range []AttendanceStatus{AttendancePresent, AttendanceAbsent, AttendanceTardy, AttendanceEarlyLeave, AttendanceSuspension, AttendanceBereaved} {
		require.True(t, status.Valid(), string(status))
	}
	require.False(t, AttendanceStatus("公欠").Valid())
}
