package design

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/atelierhq/roomora-backend/internal/data/repos/testutil"
	"github.com/atelierhq/roomora-backend/internal/domain"
	"github.com/atelierhq/roomora-backend/internal/pkg/dbctx"
)

func dbc(tx *gorm.DB) dbctx.Context {
	return dbctx.Context{Ctx: context.Background(), Tx: tx}
}

func seedProject(t *testing.T, tx *gorm.DB, repo ProjectRepo, owner uuid.UUID) *domain.Project {
	t.Helper()
	row := &domain.Project{OwnerUserID: owner, Title: "living room refresh", Status: "photos"}
	if err := repo.Create(dbc(tx), row); err != nil {
		t.Fatalf("create project: %v", err)
	}
	return row
}

func TestProjectRepoCreateGet(t *testing.T) {
	tx := testutil.Tx(t, testutil.DB(t))
	repo := NewProjectRepo(testutil.DB(t), testutil.Logger(t))
	owner := uuid.New()

	row := seedProject(t, tx, repo, owner)
	if row.ID == uuid.Nil {
		t.Fatalf("create must assign an id")
	}
	if row.CreatedAt.IsZero() || row.UpdatedAt.IsZero() {
		t.Fatalf("timestamps not set")
	}

	got, err := repo.GetByID(dbc(tx), row.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.Title != "living room refresh" || got.OwnerUserID != owner {
		t.Fatalf("unexpected row: %+v", got)
	}
}

func TestProjectRepoGetMissingReturnsNil(t *testing.T) {
	tx := testutil.Tx(t, testutil.DB(t))
	repo := NewProjectRepo(testutil.DB(t), testutil.Logger(t))

	got, err := repo.GetByID(dbc(tx), uuid.New())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing row, got %+v", got)
	}
}

func TestProjectRepoSetStatusAndList(t *testing.T) {
	tx := testutil.Tx(t, testutil.DB(t))
	repo := NewProjectRepo(testutil.DB(t), testutil.Logger(t))
	owner := uuid.New()

	a := seedProject(t, tx, repo, owner)
	seedProject(t, tx, repo, owner)
	seedProject(t, tx, repo, uuid.New()) // someone else's

	if err := repo.SetStatus(dbc(tx), a.ID, "iteration"); err != nil {
		t.Fatalf("set status: %v", err)
	}
	got, err := repo.GetByID(dbc(tx), a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != "iteration" {
		t.Fatalf("status = %q", got.Status)
	}

	mine, err := repo.ListByOwner(dbc(tx), owner)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("expected 2 projects for owner, got %d", len(mine))
	}
}

func TestProjectRepoDelete(t *testing.T) {
	tx := testutil.Tx(t, testutil.DB(t))
	repo := NewProjectRepo(testutil.DB(t), testutil.Logger(t))

	row := seedProject(t, tx, repo, uuid.New())
	if err := repo.Delete(dbc(tx), row.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err := repo.GetByID(dbc(tx), row.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatalf("row survived delete")
	}
}

func TestPhotoRepoLifecycle(t *testing.T) {
	tx := testutil.Tx(t, testutil.DB(t))
	photos := NewPhotoRepo(testutil.DB(t), testutil.Logger(t))
	projectID := uuid.New()

	p1 := &domain.ProjectPhoto{ProjectID: projectID, Kind: "room", URL: "https://photos/a.jpg"}
	p2 := &domain.ProjectPhoto{ProjectID: projectID, Kind: "inspiration", URL: "https://photos/b.jpg"}
	for _, p := range []*domain.ProjectPhoto{p1, p2} {
		if err := photos.Add(dbc(tx), p); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	rows, err := photos.ListByProject(dbc(tx), projectID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 photos, got %d", len(rows))
	}

	if err := photos.Remove(dbc(tx), projectID, p1.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	rows, _ = photos.ListByProject(dbc(tx), projectID)
	if len(rows) != 1 || rows[0].ID != p2.ID {
		t.Fatalf("remove targeted wrong row: %+v", rows)
	}

	if err := photos.DeleteByProject(dbc(tx), projectID); err != nil {
		t.Fatalf("delete by project: %v", err)
	}
	rows, _ = photos.ListByProject(dbc(tx), projectID)
	if len(rows) != 0 {
		t.Fatalf("photos survived project delete")
	}
}

func TestRevisionRepoAppendAndOrder(t *testing.T) {
	tx := testutil.Tx(t, testutil.DB(t))
	revisions := NewRevisionRepo(testutil.DB(t), testutil.Logger(t))
	projectID := uuid.New()

	// Appended out of order; listing is by revision number.
	for _, n := range []int{2, 1, 3} {
		row := &domain.DesignRevisionRow{
			ProjectID:   projectID,
			Revision:    n,
			Kind:        "feedback",
			ResultRef:   "/artifacts/p/x.png",
			Instruction: "warmer",
		}
		if err := revisions.Append(dbc(tx), row); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	rows, err := revisions.ListByProject(dbc(tx), projectID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 revisions, got %d", len(rows))
	}
	for i, row := range rows {
		if row.Revision != i+1 {
			t.Fatalf("out of order at %d: revision %d", i, row.Revision)
		}
	}

	if err := revisions.DeleteByProject(dbc(tx), projectID); err != nil {
		t.Fatalf("delete by project: %v", err)
	}
	rows, _ = revisions.ListByProject(dbc(tx), projectID)
	if len(rows) != 0 {
		t.Fatalf("revisions survived project delete")
	}
}
