package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/arklim/auth-session-service/internal/core/domain"
	"github.com/arklim/auth-session-service/internal/repository"
)

var permissionRowColumns = []string{"id", "role_id", "name", "access_level", "created_at", "updated_at"}

func TestPermissionRepository_ListByUser(t *testing.T) {
	mock := newMock(t)
	repo := NewPermissionRepository(mock)

	now := time.Now().UTC()
	rows := pgxmock.NewRows(permissionRowColumns).
		AddRow("perm-1", "role-user", "films", int16(2), now, now).
		AddRow("perm-2", "role-editor", "films", int16(4), now, now)

	mock.ExpectQuery(`SELECT p\.id, p\.role_id, s\.name, p\.access_level, p\.created_at, p\.updated_at FROM auth\.permissions p JOIN auth\.scopes s ON s\.id = p\.scope_id JOIN auth\.user_roles ur ON ur\.role_id = p\.role_id WHERE s\.name = \$1 AND ur\.user_id = \$2`).
		WithArgs("films", "user-1").
		WillReturnRows(rows)

	permissions, err := repo.ListByUser(context.Background(), "user-1", "films")
	if err != nil {
		t.Fatalf("ListByUser returned error: %v", err)
	}
	if len(permissions) != 2 || permissions[0].Scope != "films" || permissions[1].Level != domain.AccessWrite {
		t.Fatalf("unexpected permissions: %+v", permissions)
	}
	if got := domain.MergeAccessLevels(permissions); got != domain.AccessRead|domain.AccessWrite {
		t.Fatalf("expected merged read|write, got %d", got)
	}
}

func TestPermissionRepository_ListByRoleName(t *testing.T) {
	mock := newMock(t)
	repo := NewPermissionRepository(mock)

	now := time.Now().UTC()
	mock.ExpectQuery(`FROM auth\.permissions p JOIN auth\.scopes s ON s\.id = p\.scope_id JOIN auth\.roles r ON r\.id = p\.role_id WHERE s\.name = \$1 AND r\.name = \$2`).
		WithArgs("films", "incognito").
		WillReturnRows(pgxmock.NewRows(permissionRowColumns).AddRow("perm-3", "role-incognito", "films", int16(2), now, now))

	permissions, err := repo.ListByRoleName(context.Background(), "incognito", "films")
	if err != nil {
		t.Fatalf("ListByRoleName returned error: %v", err)
	}
	if len(permissions) != 1 || !permissions[0].Level.Has(domain.AccessRead) {
		t.Fatalf("unexpected permissions: %+v", permissions)
	}
}

func TestPermissionRepository_ScopeExists(t *testing.T) {
	mock := newMock(t)
	repo := NewPermissionRepository(mock)

	mock.ExpectQuery(`SELECT id FROM auth\.scopes WHERE name = \$1 LIMIT 1`).
		WithArgs("films").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("scope-1"))
	mock.ExpectQuery(`SELECT id FROM auth\.scopes WHERE name = \$1 LIMIT 1`).
		WithArgs("music").
		WillReturnError(pgx.ErrNoRows)

	exists, err := repo.ScopeExists(context.Background(), "films")
	if err != nil || !exists {
		t.Fatalf("expected films to exist, got %v, %v", exists, err)
	}
	exists, err = repo.ScopeExists(context.Background(), "music")
	if err != nil || exists {
		t.Fatalf("expected music to be unknown, got %v, %v", exists, err)
	}
}

func TestPermissionRepository_Upsert(t *testing.T) {
	mock := newMock(t)
	repo := NewPermissionRepository(mock)

	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	created := now.Add(-time.Hour)

	mock.ExpectQuery(`SELECT id FROM auth\.scopes WHERE name = \$1 LIMIT 1`).
		WithArgs("genres").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("scope-genres"))
	mock.ExpectQuery(`INSERT INTO auth\.permissions \(id,scope_id,role_id,access_level,created_at,updated_at\) VALUES \(\$1,\$2,\$3,\$4,\$5,\$6\) ON CONFLICT \(scope_id, role_id\) DO UPDATE SET access_level = EXCLUDED\.access_level, updated_at = EXCLUDED\.updated_at RETURNING id, created_at`).
		WithArgs("perm-new", "scope-genres", "role-editor", int16(6), now, now).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow("perm-old", created))

	stored, err := repo.Upsert(context.Background(), domain.Permission{
		ID:        "perm-new",
		RoleID:    "role-editor",
		Scope:     "genres",
		Level:     domain.AccessRead | domain.AccessWrite,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}
	if stored.ID != "perm-old" || !stored.CreatedAt.Equal(created) {
		t.Fatalf("expected the existing grant to be kept, got %+v", stored)
	}
}

func TestPermissionRepository_UpsertUnknownScope(t *testing.T) {
	mock := newMock(t)
	repo := NewPermissionRepository(mock)

	mock.ExpectQuery(`SELECT id FROM auth\.scopes WHERE name = \$1 LIMIT 1`).
		WithArgs("music").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.Upsert(context.Background(), domain.Permission{RoleID: "role-editor", Scope: "music", Level: domain.AccessRead})
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPermissionRepository_ListScopes(t *testing.T) {
	mock := newMock(t)
	repo := NewPermissionRepository(mock)

	mock.ExpectQuery(`SELECT name FROM auth\.scopes ORDER BY name ASC`).
		WillReturnRows(pgxmock.NewRows([]string{"name"}).AddRow("films").AddRow("genres"))

	scopes, err := repo.ListScopes(context.Background())
	if err != nil {
		t.Fatalf("ListScopes returned error: %v", err)
	}
	if len(scopes) != 2 || scopes[0] != "films" || scopes[1] != "genres" {
		t.Fatalf("unexpected scopes: %v", scopes)
	}
}
