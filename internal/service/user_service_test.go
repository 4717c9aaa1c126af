package service_test

import (
	"context"
	"testing"

	"inventory-service/internal/apperr"
	"inventory-service/internal/models"
	"inventory-service/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUser(email, role string) *service.CreateUserInput {
	return &service.CreateUserInput{Email: email, FirstName: "First", LastName: "Last", Role: role}
}

func TestCreateUserRoleRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.users.CreateUser(ctx, master, newUser("root@example.com", "MASTER_ADMIN"))
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.users.CreateUser(ctx, admin, newUser("boss@example.com", "ADMIN"))
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.users.CreateUser(ctx, employee, newUser("e@example.com", "EMPLOYEE"))
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.users.CreateUser(ctx, admin, newUser("e@example.com", "OWNER"))
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = f.users.CreateUser(ctx, admin, newUser("not-an-email", "EMPLOYEE"))
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	u, err := f.users.CreateUser(ctx, admin, newUser(" Emp@Example.com ", "employee"))
	require.NoError(t, err)
	assert.Equal(t, "emp@example.com", u.Email)
	assert.Equal(t, models.RoleEmployee, u.Role)
	assert.Equal(t, models.UserStatusActive, u.Status)

	_, err = f.users.CreateUser(ctx, master, newUser("EMP@example.com", "ADMIN"))
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestUserSummaryAndAdminEmails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.users.CreateUser(ctx, master, newUser("a1@example.com", "ADMIN"))
	require.NoError(t, err)
	_, err = f.users.CreateUser(ctx, master, newUser("a2@example.com", "ADMIN"))
	require.NoError(t, err)
	e, err := f.users.CreateUser(ctx, admin, newUser("e1@example.com", "EMPLOYEE"))
	require.NoError(t, err)
	_, err = f.users.CreateUser(ctx, admin, newUser("e2@example.com", "EMPLOYEE"))
	require.NoError(t, err)

	_, err = f.userBin.Delete(ctx, admin, e.ID)
	require.NoError(t, err)

	summary, err := f.users.Summary(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 3, summary.Active)
	assert.Equal(t, 1, summary.Deleted)
	assert.Equal(t, 2, summary.ByRole[models.RoleAdmin])
	assert.Equal(t, 1, summary.ByRole[models.RoleEmployee])

	emails, err := f.users.AdminEmails(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a1@example.com", "a2@example.com"}, emails)

	admins, err := f.users.ListUsers(ctx, admin, false, "admin")
	require.NoError(t, err)
	assert.Len(t, admins, 2)

	_, err = f.users.ListUsers(ctx, admin, false, "boss")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = f.users.ListUsers(ctx, employee, false, "")
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}
