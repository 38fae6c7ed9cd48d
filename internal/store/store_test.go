package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-formwizard/internal/store"
	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/submit"
	"github.com/goliatone/go-formwizard/pkg/upload"
)

func openStore(t *testing.T, opts ...store.Option) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), ":memory:", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUploadAndRead(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	res, err := s.Upload(ctx, upload.File{Name: "logo.png", MimeType: "image/png", Content: []byte{1, 2, 3}})
	require.NoError(t, err)
	require.NotEmpty(t, res.StorageKey)

	file, err := s.File(ctx, res.StorageKey)
	require.NoError(t, err)
	assert.Equal(t, "logo.png", file.Name)
	assert.Equal(t, "image/png", file.MimeType)
	assert.Equal(t, []byte{1, 2, 3}, file.Content)

	_, err = s.File(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreateListGet(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	tick := 0
	s := openStore(t, store.WithClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}))

	res, err := s.Upload(ctx, upload.File{Name: "logo.png", MimeType: "image/png", Content: []byte{9}})
	require.NoError(t, err)

	first, err := s.Create(ctx, model.Record{
		"legalName":  "Acme Widgets GmbH",
		"registered": map[string]any{"city": "Berlin"},
		"logo":       res.StorageKey,
	})
	require.NoError(t, err)
	assert.Equal(t, "acme-widgets-gmbh", first.Fields["slug"])

	second, err := s.Create(ctx, model.Record{"legalName": "Beta Labs"})
	require.NoError(t, err)

	companies, total, err := s.List(ctx, store.Page{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, companies, 2)
	assert.Equal(t, second.ID, companies[0].ID, "newest first")
	assert.Equal(t, first.ID, companies[1].ID)

	got, err := s.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Widgets GmbH", got.Name)
	assert.Equal(t, res.StorageKey, got.LogoKey)
	assert.Equal(t, map[string]any{"city": "Berlin"}, got.Fields["registered"])

	_, err = s.Get(ctx, "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)

	page, total, err := s.List(ctx, store.Page{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, page, 1)
	assert.Equal(t, first.ID, page[0].ID)
}

func TestCreateFieldErrors(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	_, err := s.Create(ctx, model.Record{"legalName": "  "})
	var fieldErr *submit.FieldError
	require.True(t, errors.As(err, &fieldErr))
	assert.Equal(t, []string{"is required"}, fieldErr.Fields["legalName"])

	_, err = s.Create(ctx, model.Record{"legalName": "Acme"})
	require.NoError(t, err)
	_, err = s.Create(ctx, model.Record{"legalName": "ACME"})
	require.True(t, errors.As(err, &fieldErr))
	assert.Contains(t, fieldErr.Fields["legalName"][0], "already exists")

	_, err = s.Create(ctx, model.Record{"legalName": "Gamma", "logo": "unknown-key"})
	require.True(t, errors.As(err, &fieldErr))
	assert.Contains(t, fieldErr.Fields, "logo")
}

func TestListOrdersWholeSecondsChronologically(t *testing.T) {
	ctx := context.Background()
	stamps := []time.Time{
		time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 1, 9, 0, 0, 100_000_000, time.UTC),
		time.Date(2024, 3, 1, 9, 0, 1, 0, time.UTC),
	}
	tick := 0
	s := openStore(t, store.WithClock(func() time.Time {
		ts := stamps[tick]
		tick++
		return ts
	}))

	var ids []string
	for _, name := range []string{"Alpha", "Beta", "Gamma"} {
		entity, err := s.Create(ctx, model.Record{"legalName": name})
		require.NoError(t, err)
		ids = append(ids, entity.ID)
	}

	companies, _, err := s.List(ctx, store.Page{Limit: 10})
	require.NoError(t, err)
	require.Len(t, companies, 3)
	assert.Equal(t, []string{ids[2], ids[1], ids[0]}, []string{companies[0].ID, companies[1].ID, companies[2].ID})
	assert.True(t, companies[2].CreatedAt.Equal(stamps[0]))
}

func TestCreateUnsluggableNames(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	first, err := s.Create(ctx, model.Record{"legalName": "!!!"})
	require.NoError(t, err)
	second, err := s.Create(ctx, model.Record{"legalName": "???"})
	require.NoError(t, err)

	assert.NotEmpty(t, first.Fields["slug"])
	assert.NotEqual(t, first.Fields["slug"], second.Fields["slug"])
	assert.Equal(t, "company-"+first.ID[:8], first.Fields["slug"])
}

func TestCollaboratorsThroughCoordinator(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	state := model.FormState{
		"company": model.Record{"legalName": "Delta"},
		"contact": model.Record{"email": "hi@delta.test"},
	}
	pending := &upload.PendingUpload{
		File:     upload.File{Name: "d.png", MimeType: "image/png", Content: []byte{1}},
		FileName: "d.png",
	}

	out := submit.New().Submit(ctx, state, pending, s.Collaborators())
	require.True(t, out.Succeeded(), "outcome: %+v", out)

	company, err := s.Get(ctx, out.Entity.ID)
	require.NoError(t, err)
	file, err := s.File(ctx, company.LogoKey)
	require.NoError(t, err)
	assert.Equal(t, "d.png", file.Name)
	assert.Equal(t, "hi@delta.test", company.Fields["email"])
}
