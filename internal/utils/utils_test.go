package utils

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/wfh-manager/backend/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

func TestGenerateEmailLocalPart(t *testing.T) {
	local := GenerateEmailLocalPart("王", "伟")
	assert.Regexp(t, regexp.MustCompile(`^wei\.wang[0-9]{1,3}$`), local)
}

func TestGenerateRandomEmployee(t *testing.T) {
	manager := int64(130002)
	employee, err := GenerateRandomEmployee(130010, "Sales", "Account Manager", domain.RoleStaff, &manager, "123456", "allinone.com.sg")
	require.NoError(t, err)

	assert.Equal(t, int64(130010), employee.ID)
	assert.Equal(t, domain.Department("Sales"), employee.Department)
	assert.Equal(t, &manager, employee.ReportingManager)
	assert.True(t, strings.HasSuffix(employee.Email, "@allinone.com.sg"))
	assert.Contains(t, Countries, employee.Country)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(employee.PasswordHash), []byte("123456")))
}

func TestGenerateRandomOTP(t *testing.T) {
	for i := 0; i < 20; i++ {
		assert.Regexp(t, regexp.MustCompile(`^[0-9]{6}$`), GenerateRandomOTP())
	}
}

func TestValidateBlockoutPeriod(t *testing.T) {
	d := func(s string) time.Time {
		v, _ := domain.ParseDate(s)
		return v
	}

	assert.NoError(t, ValidateBlockoutPeriod(&domain.Blockout{StartDate: d("2025-03-10"), EndDate: d("2025-03-10"), Timeslot: domain.TimeslotFull}))
	assert.NoError(t, ValidateBlockoutPeriod(&domain.Blockout{StartDate: d("2025-03-10"), EndDate: d("2026-03-10"), Timeslot: domain.TimeslotAM}))

	assert.Error(t, ValidateBlockoutPeriod(&domain.Blockout{StartDate: d("2025-03-11"), EndDate: d("2025-03-10"), Timeslot: domain.TimeslotAM}))
	assert.Error(t, ValidateBlockoutPeriod(&domain.Blockout{StartDate: d("2025-03-10"), EndDate: d("2026-03-11"), Timeslot: domain.TimeslotAM}))
	assert.ErrorIs(t, ValidateBlockoutPeriod(&domain.Blockout{StartDate: d("2025-03-10"), EndDate: d("2025-03-10"), Timeslot: "NIGHT"}), domain.ErrValidation)
}

func TestValidateHierarchy(t *testing.T) {
	id := func(v int64) *int64 { return &v }

	valid := []*domain.Employee{
		{ID: 1},
		{ID: 2, ReportingManager: id(1)},
		{ID: 3, ReportingManager: id(2)},
	}
	assert.NoError(t, ValidateHierarchy(valid))

	missing := []*domain.Employee{
		{ID: 1},
		{ID: 2, ReportingManager: id(9)},
	}
	assert.ErrorContains(t, ValidateHierarchy(missing), "不存在")

	cycle := []*domain.Employee{
		{ID: 1, ReportingManager: id(3)},
		{ID: 2, ReportingManager: id(1)},
		{ID: 3, ReportingManager: id(2)},
	}
	assert.ErrorContains(t, ValidateHierarchy(cycle), "环")
}
