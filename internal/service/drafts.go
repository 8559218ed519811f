package service

import (
	"context"
	"fmt"

	"github.com/roach88/quill/internal/autosave"
	"github.com/roach88/quill/internal/journal"
)

// OpenDocument starts auto-saving the entry at key, loading its committed
// content first. Opening an already open key returns the same Document.
func (s *Service) OpenDocument(ctx context.Context, key journal.Key) (*autosave.Document, error) {
	e, found, err := s.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	key, _ = validKey(key)
	if !found {
		return s.sched.Open(key, "", journal.NoVersion), nil
	}
	return s.sched.OpenEntry(e), nil
}

// ListRecoverableDrafts returns drafts from other sessions that are newer
// than the committed entry for their key, or whose key has no entry.
func (s *Service) ListRecoverableDrafts(ctx context.Context) ([]journal.Draft, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	all, err := s.drafts.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []journal.Draft
	for _, d := range all {
		if d.SessionID == s.session {
			continue
		}
		ok, err := s.recoverable(ctx, d)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, d)
		}
	}
	return out, nil
}

// AcceptDraft opens the draft's entry for editing with the draft content,
// which leaves the document Dirty when it differs from the committed
// content. The draft moves to this session.
func (s *Service) AcceptDraft(ctx context.Context, id string) (*autosave.Document, error) {
	d, err := s.draft(ctx, id)
	if err != nil {
		return nil, err
	}

	doc, err := s.OpenDocument(ctx, d.Key)
	if err != nil {
		return nil, err
	}
	doc.Edit(d.Content)

	if d.SessionID != s.session {
		ctx, cancel := s.withTimeout(ctx)
		defer cancel()
		moved := journal.Draft{SessionID: s.session, Key: d.Key, Content: d.Content, SavedAt: s.clock.Now()}
		if err := s.drafts.Put(ctx, moved); err != nil {
			return doc, err
		}
		if err := s.drafts.Delete(ctx, d.ID); err != nil {
			return doc, err
		}
	}
	return doc, nil
}

// DiscardDraft removes a draft. Unknown ids are ignored.
func (s *Service) DiscardDraft(ctx context.Context, id string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.drafts.Delete(ctx, id)
}

func (s *Service) draft(ctx context.Context, id string) (journal.Draft, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	d, ok, err := s.drafts.Get(ctx, id)
	if err != nil {
		return journal.Draft{}, err
	}
	if !ok {
		return journal.Draft{}, &journal.ValidationError{Field: "draft_id", Reason: fmt.Sprintf("no draft %q", id)}
	}
	return d, nil
}

// recoverable reports whether d holds content the entry store lacks.
func (s *Service) recoverable(ctx context.Context, d journal.Draft) (bool, error) {
	e, found, err := s.store.LoadEntry(ctx, d.Key)
	if err != nil {
		return false, err
	}
	return !found || d.SavedAt.After(e.UpdatedAt), nil
}

// purgeCommittedDrafts removes this session's drafts whose content has
// been committed.
func (s *Service) purgeCommittedDrafts(ctx context.Context) (int, error) {
	return s.drafts.DeleteWhere(ctx, func(d journal.Draft) bool {
		if d.SessionID != s.session {
			return false
		}
		ok, err := s.recoverable(ctx, d)
		return err == nil && !ok
	})
}
