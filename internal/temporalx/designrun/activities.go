package designrun

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/atelierhq/roomora-backend/internal/conversation"
	designrepo "github.com/atelierhq/roomora-backend/internal/data/repos/design"
	"github.com/atelierhq/roomora-backend/internal/domain"
	"github.com/atelierhq/roomora-backend/internal/pkg/dbctx"
	"github.com/atelierhq/roomora-backend/internal/pkg/faults"
	"github.com/atelierhq/roomora-backend/internal/platform/artifacts"
	"github.com/atelierhq/roomora-backend/internal/platform/genai"
	"github.com/atelierhq/roomora-backend/internal/platform/logger"
	"github.com/atelierhq/roomora-backend/internal/platform/prompts"
	"github.com/atelierhq/roomora-backend/internal/shopping"
)

// Activities is the workflow's gateway to everything slow: the model
// provider, the conversation store, the catalog pipeline and the database.
// Every failure crossing back into the workflow is classified via faults.
type Activities struct {
	Log       *logger.Logger
	DB        *gorm.DB
	Model     genai.Client
	Session   *conversation.Session
	Sessions  conversation.Store
	Shopping  *shopping.Builder
	Artifacts *artifacts.Store
	Projects  designrepo.ProjectRepo
	Photos    designrepo.PhotoRepo
	Revisions designrepo.RevisionRepo
	Prompts   *prompts.Config
}

// GenerateDesigns renders exactly two design candidates, fanning the two
// prompt variants out in parallel. The fan-out is invisible to the workflow:
// one activity call in, one result out.
func (a *Activities) GenerateDesigns(ctx context.Context, in GenerateInput) (GenerateResult, error) {
	if a == nil || a.Model == nil || a.Prompts == nil {
		return GenerateResult{}, faults.Permanent("generate activity not configured", nil)
	}
	roomURLs, inspirationURLs := splitPhotoURLs(in.Photos)
	if len(roomURLs) < minRoomPhotos {
		return GenerateResult{}, faults.Validation(
			fmt.Sprintf("generation needs at least %d room photos, got %d", minRoomPhotos, len(roomURLs)), nil)
	}

	brief := briefText(in.Brief)
	scanRef := ""
	if in.Scan != nil {
		scanRef = in.Scan.Ref
	}

	options := make([]domain.DesignOption, len(a.Prompts.GenerationVariants))
	g, gctx := errgroup.WithContext(ctx)
	for i, variant := range a.Prompts.GenerationVariants {
		g.Go(func() error {
			artifact, err := a.Model.GenerateDesign(gctx, genai.GenerateDesignRequest{
				Prompt:          fmt.Sprintf(variant, brief),
				RoomPhotoURLs:   roomURLs,
				InspirationURLs: inspirationURLs,
				ScanRef:         scanRef,
			})
			if err != nil {
				return err
			}
			options[i] = domain.DesignOption{ImageURL: artifact.ImageURL, Summary: artifact.Summary}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return GenerateResult{}, err
	}

	a.Log.Info("generated design options", "project_id", in.ProjectID, "options", len(options))
	return GenerateResult{Options: options}, nil
}

// EditDesign applies one iteration edit through the continuity-backed
// session: restore history, prune, call the model, persist the extended
// history, store the rendered result, record the revision.
func (a *Activities) EditDesign(ctx context.Context, in EditInput) (EditResult, error) {
	if a == nil || a.Session == nil || a.Artifacts == nil {
		return EditResult{}, faults.Permanent("edit activity not configured", nil)
	}

	instruction, err := a.editInstruction(in)
	if err != nil {
		return EditResult{}, err
	}

	key := strings.TrimSpace(in.SessionKey)
	if key == "" {
		// The project id doubles as the session key; stable across the
		// whole iteration loop.
		key = in.ProjectID
	}

	parts := []conversation.Part{
		{Text: fmt.Sprintf("Current design: %s", in.CurrentImage)},
		{Text: instruction},
	}
	reply, err := a.Session.Continue(ctx, key, parts)
	if err != nil {
		return EditResult{}, classifySessionErr(err)
	}

	resultRef, err := a.storeReplyImage(in.ProjectID, reply)
	if err != nil {
		return EditResult{}, err
	}

	record := domain.RevisionRecord{
		Revision:    in.Revision,
		Kind:        in.Kind,
		BaseRef:     in.CurrentImage,
		ResultRef:   resultRef,
		Instruction: instruction,
	}
	a.persistRevision(ctx, in, record)

	a.Log.Info("applied design edit", "project_id", in.ProjectID, "revision", record.Revision, "kind", string(record.Kind))
	return EditResult{Record: record, SessionKey: key}, nil
}

// GenerateShoppingList runs the extraction/search/scoring pipeline over the
// approved design.
func (a *Activities) GenerateShoppingList(ctx context.Context, in ShoppingInput) (ShoppingResult, error) {
	if a == nil || a.Shopping == nil {
		return ShoppingResult{}, faults.Permanent("shopping pipeline not configured", nil)
	}
	roomURLs, _ := splitPhotoURLs(in.RoomPhotos)
	brief := domain.DesignBrief{}
	if in.Brief != nil {
		brief = *in.Brief
	}
	list, err := a.Shopping.Build(ctx, shopping.BuildInput{
		FinalImageURL: in.FinalImage,
		RoomPhotoURLs: roomURLs,
		Brief:         brief,
		Revisions:     in.Revisions,
	})
	if err != nil {
		return ShoppingResult{}, err
	}
	return ShoppingResult{List: list}, nil
}

// PurgeProject deletes everything a project left behind. Best-effort by
// contract: every failure is logged, none is re-raised, termination is
// never blocked on cleanup.
func (a *Activities) PurgeProject(ctx context.Context, projectID string) error {
	log := a.Log.With("project_id", projectID)

	if a.Sessions != nil {
		if err := a.Sessions.Delete(ctx, projectID); err != nil {
			log.Warn("purge: delete conversation failed", "error", err)
		}
	}
	if a.Artifacts != nil {
		if err := a.Artifacts.RemoveProject(projectID); err != nil {
			log.Warn("purge: delete artifacts failed", "error", err)
		}
	}

	id, err := uuid.Parse(strings.TrimSpace(projectID))
	if err != nil {
		log.Warn("purge: project id is not a uuid; skipping row cleanup")
		return nil
	}
	dbc := dbctx.Context{Ctx: ctx}
	if a.Photos != nil {
		if err := a.Photos.DeleteByProject(dbc, id); err != nil {
			log.Warn("purge: delete photos failed", "error", err)
		}
	}
	if a.Revisions != nil {
		if err := a.Revisions.DeleteByProject(dbc, id); err != nil {
			log.Warn("purge: delete revisions failed", "error", err)
		}
	}
	if a.Projects != nil {
		if err := a.Projects.Delete(dbc, id); err != nil {
			log.Warn("purge: delete project row failed", "error", err)
		}
	}
	log.Info("project data purged")
	return nil
}

func (a *Activities) editInstruction(in EditInput) (string, error) {
	switch in.Kind {
	case domain.EditAnnotation:
		if len(in.Annotations) == 0 {
			return "", faults.Validation("annotation edit has no regions", nil)
		}
		for i, region := range in.Annotations {
			if strings.TrimSpace(region.Instruction) == "" {
				return "", faults.Validation(fmt.Sprintf("annotation region %d has no instruction", i), nil)
			}
			if region.W <= 0 || region.H <= 0 {
				return "", faults.Validation(fmt.Sprintf("annotation region %d has a degenerate rectangle", i), nil)
			}
		}
		encoded, err := json.Marshal(in.Annotations)
		if err != nil {
			return "", faults.Validation("annotation edit is not encodable", err)
		}
		return fmt.Sprintf(a.Prompts.AnnotationEdit, string(encoded)), nil
	case domain.EditFeedback:
		if strings.TrimSpace(in.Feedback) == "" {
			return "", faults.Validation("feedback edit is empty", nil)
		}
		return fmt.Sprintf(a.Prompts.FeedbackEdit, in.Feedback), nil
	default:
		return "", faults.Validation(fmt.Sprintf("unknown edit kind %q", in.Kind), nil)
	}
}

func (a *Activities) storeReplyImage(projectID string, reply conversation.Turn) (string, error) {
	for _, p := range reply.Parts {
		if p.IsImage() {
			ref, err := a.Artifacts.Put(projectID, p.Image, p.MediaType)
			if err != nil {
				return "", faults.Transient("store edited image", err)
			}
			return ref, nil
		}
	}
	return "", faults.Transient("model reply carried no image", nil)
}

// persistRevision mirrors the revision into the database for listing and
// purge. The workflow state is the source of truth; a failed mirror write
// must not fail the edit.
func (a *Activities) persistRevision(ctx context.Context, in EditInput, record domain.RevisionRecord) {
	if a.Revisions == nil {
		return
	}
	id, err := uuid.Parse(strings.TrimSpace(in.ProjectID))
	if err != nil {
		return
	}
	payload, _ := json.Marshal(in.Annotations)
	row := &domain.DesignRevisionRow{
		ProjectID:   id,
		Revision:    record.Revision,
		Kind:        string(record.Kind),
		BaseRef:     record.BaseRef,
		ResultRef:   record.ResultRef,
		Instruction: record.Instruction,
		Payload:     payload,
	}
	if err := a.Revisions.Append(dbctx.Context{Ctx: ctx}, row); err != nil {
		a.Log.Warn("revision mirror write failed", "project_id", in.ProjectID, "revision", record.Revision, "error", err)
	}
}

func classifySessionErr(err error) error {
	switch {
	case errors.Is(err, conversation.ErrCorruptSession):
		return faults.CorruptSession("stored conversation is unreadable", err)
	case errors.Is(err, conversation.ErrNoImageReply):
		return faults.Transient("model produced no image after nudge", err)
	default:
		if _, ok := faults.Classify(err); ok {
			return err
		}
		return faults.Transient(err.Error(), err)
	}
}

func splitPhotoURLs(photos []domain.PhotoRef) (room []string, inspiration []string) {
	for _, p := range photos {
		if p.Kind == domain.PhotoInspiration {
			inspiration = append(inspiration, p.URL)
			continue
		}
		room = append(room, p.URL)
	}
	return room, inspiration
}

func briefText(b *domain.DesignBrief) string {
	if b == nil {
		return "no brief provided"
	}
	parts := []string{}
	if b.Style != "" {
		parts = append(parts, "style: "+b.Style)
	}
	if len(b.ColorPalette) > 0 {
		parts = append(parts, "palette: "+strings.Join(b.ColorPalette, ", "))
	}
	if b.BudgetTier != "" {
		parts = append(parts, "budget: "+b.BudgetTier)
	}
	if len(b.KeepItems) > 0 {
		parts = append(parts, "keep: "+strings.Join(b.KeepItems, ", "))
	}
	if b.Notes != "" {
		parts = append(parts, b.Notes)
	}
	if len(parts) == 0 {
		return "no brief provided"
	}
	return strings.Join(parts, "; ")
}
