package importer

import (
	"context"
	"errors"
	"strings"

	"github.com/nikbrunner/anchormarks/internal/model"
	"github.com/nikbrunner/anchormarks/internal/storage"
)

// Reasons reported for folders that could not be placed.
const (
	ReasonEmptyName        = "empty name"
	ReasonUnresolvedParent = "unresolved parent"
	ReasonDuplicateID      = "duplicate id"
)

// Remap maps payload folder ids to canonical folder ids for one import call.
type Remap map[model.ExternalID]string

// Lookup returns the canonical folder for ext, or nil when ext is empty or
// was never resolved.
func (r Remap) Lookup(ext model.ExternalID) *string {
	if ext == "" {
		return nil
	}
	if id, ok := r[ext]; ok {
		return &id
	}
	return nil
}

// FolderResolution is the outcome of ResolveFolders.
type FolderResolution struct {
	Remap      Remap
	Folders    []string // canonical ids, first-resolved order, no repeats
	Created    int
	Unresolved []model.UnresolvedFolder
}

// ResolveFolders places each descriptor into the user's folder tree.
//
// Descriptors are processed from a FIFO queue. One whose parent is in the
// batch but not yet placed goes back to the tail. A descriptor is mapped to
// an existing folder with the same (name, resolved parent) or created after
// its last sibling. A parent that is neither in the batch nor an existing
// folder of the user means top-level.
//
// When every queued descriptor has been requeued once without any progress
// (a cycle), the head is reported as unresolved and dropped from the remap,
// which frees the rest of the cycle to resolve. Requeues are also capped at
// n²+n overall.
//
// A descriptor repeating an earlier id is skipped; when its name or parent
// differs from the first one it is reported as a duplicate id.
//
// Per-folder database errors are reported as unresolved; only context
// cancellation aborts the call.
func ResolveFolders(ctx context.Context, q storage.Querier, userID string, descs []model.FolderDescriptor) (*FolderResolution, error) {
	res := &FolderResolution{
		Remap:      Remap{},
		Folders:    []string{},
		Unresolved: []model.UnresolvedFolder{},
	}

	inBatch := make(map[model.ExternalID]bool, len(descs))
	first := make(map[model.ExternalID]int, len(descs))
	for i, d := range descs {
		if d.ID != "" && !inBatch[d.ID] {
			inBatch[d.ID] = true
			first[d.ID] = i
		}
	}
	failed := make(map[model.ExternalID]bool)
	listed := make(map[string]bool)

	queue := make([]int, len(descs))
	for i := range descs {
		queue[i] = i
	}
	maxRequeues := len(descs)*len(descs) + len(descs)
	requeues, stalled := 0, 0

	fail := func(d model.FolderDescriptor, reason string) {
		res.Unresolved = append(res.Unresolved, model.UnresolvedFolder{
			ID: string(d.ID), Name: d.Name, Reason: reason,
		})
		if d.ID != "" {
			failed[d.ID] = true
		}
	}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		i := queue[0]
		queue = queue[1:]
		d := descs[i]

		name := strings.TrimSpace(d.Name)
		if name == "" {
			fail(d, ReasonEmptyName)
			stalled = 0
			continue
		}
		if d.ID != "" && first[d.ID] != i {
			// Repeated id: the first descriptor owns it. A repeat that
			// describes a different folder is reported, not merged.
			orig := descs[first[d.ID]]
			if name != strings.TrimSpace(orig.Name) || d.ParentID != orig.ParentID {
				res.Unresolved = append(res.Unresolved, model.UnresolvedFolder{
					ID: string(d.ID), Name: d.Name, Reason: ReasonDuplicateID,
				})
			}
			stalled = 0
			continue
		}

		if waitingOnBatch(d, res.Remap, inBatch, failed) {
			if stalled < len(queue)+1 && requeues < maxRequeues {
				requeues++
				stalled++
				queue = append(queue, i)
				continue
			}
			fail(d, ReasonUnresolvedParent)
			stalled = 0
			continue
		}
		stalled = 0

		parentID, err := resolveParent(ctx, q, userID, d, res.Remap, inBatch)
		if err != nil {
			fail(d, "error: "+err.Error())
			continue
		}

		folder, created, err := findOrCreateFolder(ctx, q, userID, name, parentID, d)
		if err != nil {
			fail(d, "error: "+err.Error())
			continue
		}

		if d.ID != "" {
			res.Remap[d.ID] = folder.ID
		}
		if created {
			res.Created++
		}
		if !listed[folder.ID] {
			listed[folder.ID] = true
			res.Folders = append(res.Folders, folder.ID)
		}
	}

	return res, nil
}

// waitingOnBatch reports whether d's parent is a batch member that has not
// been placed yet and has not failed.
func waitingOnBatch(d model.FolderDescriptor, remap Remap, inBatch, failed map[model.ExternalID]bool) bool {
	if d.ParentID == "" || d.ParentID == d.ID {
		return false
	}
	if _, ok := remap[d.ParentID]; ok {
		return false
	}
	return inBatch[d.ParentID] && !failed[d.ParentID]
}

// resolveParent returns the canonical parent for d, or nil for top-level.
// A self-parent, a failed batch parent or an unknown id all mean top-level.
func resolveParent(ctx context.Context, q storage.Querier, userID string, d model.FolderDescriptor, remap Remap, inBatch map[model.ExternalID]bool) (*string, error) {
	if d.ParentID == "" || d.ParentID == d.ID {
		return nil, nil
	}
	if id, ok := remap[d.ParentID]; ok {
		return &id, nil
	}
	if inBatch[d.ParentID] {
		return nil, nil
	}

	existing, err := storage.GetFolder(ctx, q, userID, string(d.ParentID))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &existing.ID, nil
}

func findOrCreateFolder(ctx context.Context, q storage.Querier, userID, name string, parentID *string, d model.FolderDescriptor) (*model.Folder, bool, error) {
	existing, err := storage.FindFolder(ctx, q, userID, name, parentID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, false, err
	}

	pos, err := storage.NextFolderPosition(ctx, q, userID, parentID)
	if err != nil {
		return nil, false, err
	}

	folder := model.NewFolder(model.NewFolderParams{
		UserID:   userID,
		ParentID: parentID,
		Name:     name,
		Color:    d.Color,
		Icon:     d.Icon,
		Position: pos,
	})
	if err := storage.InsertFolder(ctx, q, &folder); err != nil {
		return nil, false, err
	}
	return &folder, true, nil
}
