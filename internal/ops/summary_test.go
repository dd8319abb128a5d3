package ops

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/readlater/internal/db"
	"github.com/hpungsan/readlater/internal/errors"
	"github.com/hpungsan/readlater/internal/item"
)

func TestStreamSummary_WritesModelOutput(t *testing.T) {
	env, sc, sm := setupEnv(t)
	user := addUser(t, env, "u1", "u1@example.com")
	id := importCompleted(t, env, sc, user, "https://example.com/a", "A")

	sm.On("StreamSummary", mock.Anything, "# A", mock.Anything).
		Run(func(args mock.Arguments) {
			w := args.Get(2).(io.Writer)
			_, _ = io.WriteString(w, "First chunk. ")
			_, _ = io.WriteString(w, "Second chunk.")
		}).
		Return(nil).Once()

	var buf bytes.Buffer
	err := StreamSummary(context.Background(), env, user, StreamSummaryInput{ID: id}, &buf)
	require.NoError(t, err)
	require.Equal(t, "First chunk. Second chunk.", buf.String())

	// Streaming alone stores nothing.
	it, err := db.GetItem(context.Background(), env.DB, "u1", id)
	require.NoError(t, err)
	require.Nil(t, it.Summary)
	sm.AssertExpectations(t)
}

func TestStreamSummary_RequiresContent(t *testing.T) {
	env, sc, sm := setupEnv(t)
	user := addUser(t, env, "u1", "u1@example.com")

	sc.On("Scrape", mock.Anything, mock.Anything, mock.Anything).Return(nil, stderrors.New("boom")).Once()
	out, err := Import(context.Background(), env, user, ImportInput{URL: "https://example.com/failed"})
	require.NoError(t, err)

	err = StreamSummary(context.Background(), env, user, StreamSummaryInput{ID: out.ID}, io.Discard)
	requireCode(t, err, errors.ErrInvalidRequest)
	sm.AssertNotCalled(t, "StreamSummary", mock.Anything, mock.Anything, mock.Anything)
}

func TestStreamSummary_UpstreamError(t *testing.T) {
	env, sc, sm := setupEnv(t)
	user := addUser(t, env, "u1", "u1@example.com")
	id := importCompleted(t, env, sc, user, "https://example.com/a", "A")

	sm.On("StreamSummary", mock.Anything, mock.Anything, mock.Anything).Return(stderrors.New("429 rate limited")).Once()

	err := StreamSummary(context.Background(), env, user, StreamSummaryInput{ID: id}, io.Discard)
	requireCode(t, err, errors.ErrUpstream)
}

func TestStreamSummary_ForeignItemIsNotFound(t *testing.T) {
	env, sc, _ := setupEnv(t)
	owner := addUser(t, env, "u1", "u1@example.com")
	other := addUser(t, env, "u2", "u2@example.com")
	id := importCompleted(t, env, sc, owner, "https://example.com/a", "A")

	err := StreamSummary(context.Background(), env, other, StreamSummaryInput{ID: id}, io.Discard)
	requireCode(t, err, errors.ErrNotFound)
}

func TestSaveSummary_StoresSummaryAndParsedTags(t *testing.T) {
	env, sc, sm := setupEnv(t)
	user := addUser(t, env, "u1", "u1@example.com")
	id := importCompleted(t, env, sc, user, "https://example.com/a", "A")

	sm.On("ExtractTags", mock.Anything, "A short summary.").
		Return(" Go, Databases ,, SQLite, web, testing, extra ", nil).Once()

	it, err := SaveSummary(context.Background(), env, user, SaveSummaryInput{ID: id, Summary: "  A short summary.  "})
	require.NoError(t, err)
	require.Equal(t, "A short summary.", *it.Summary)
	require.Equal(t, []string{"go", "databases", "sqlite", "web", "testing"}, it.Tags)
	sm.AssertExpectations(t)
}

func TestSaveSummary_OverwritesPreviousSummary(t *testing.T) {
	env, sc, sm := setupEnv(t)
	user := addUser(t, env, "u1", "u1@example.com")
	id := importCompleted(t, env, sc, user, "https://example.com/a", "A")

	sm.On("ExtractTags", mock.Anything, "first").Return("one", nil).Once()
	sm.On("ExtractTags", mock.Anything, "second").Return("two, three", nil).Once()

	_, err := SaveSummary(context.Background(), env, user, SaveSummaryInput{ID: id, Summary: "first"})
	require.NoError(t, err)
	it, err := SaveSummary(context.Background(), env, user, SaveSummaryInput{ID: id, Summary: "second"})
	require.NoError(t, err)

	require.Equal(t, "second", *it.Summary)
	require.Equal(t, []string{"two", "three"}, it.Tags)
}

func TestSaveSummary_TagFailurePersistsNothing(t *testing.T) {
	env, sc, sm := setupEnv(t)
	user := addUser(t, env, "u1", "u1@example.com")
	id := importCompleted(t, env, sc, user, "https://example.com/a", "A")

	sm.On("ExtractTags", mock.Anything, mock.Anything).Return("", stderrors.New("upstream 503")).Once()

	_, err := SaveSummary(context.Background(), env, user, SaveSummaryInput{ID: id, Summary: "text"})
	requireCode(t, err, errors.ErrUpstream)

	it, err := db.GetItem(context.Background(), env.DB, "u1", id)
	require.NoError(t, err)
	require.Nil(t, it.Summary)
	require.Empty(t, it.Tags)
}

func TestSaveSummary_ForeignItemIsNotFound(t *testing.T) {
	env, sc, sm := setupEnv(t)
	owner := addUser(t, env, "u1", "u1@example.com")
	other := addUser(t, env, "u2", "u2@example.com")
	id := importCompleted(t, env, sc, owner, "https://example.com/a", "A")

	_, err := SaveSummary(context.Background(), env, other, SaveSummaryInput{ID: id, Summary: "mine now"})
	requireCode(t, err, errors.ErrNotFound)
	sm.AssertNotCalled(t, "ExtractTags", mock.Anything, mock.Anything)
}

func TestSaveSummary_Validation(t *testing.T) {
	env, _, _ := setupEnv(t)
	user := addUser(t, env, "u1", "u1@example.com")

	_, err := SaveSummary(context.Background(), env, user, SaveSummaryInput{ID: "", Summary: "s"})
	requireCode(t, err, errors.ErrInvalidRequest)

	_, err = SaveSummary(context.Background(), env, user, SaveSummaryInput{ID: "x", Summary: "   "})
	requireCode(t, err, errors.ErrInvalidRequest)

	_, err = SaveSummary(context.Background(), env, user, SaveSummaryInput{ID: "missing", Summary: "s"})
	requireCode(t, err, errors.ErrNotFound)
}

func TestSummary_BlankContentRejectedByBothOperations(t *testing.T) {
	env, sc, sm := setupEnv(t)
	user := addUser(t, env, "u1", "u1@example.com")

	sc.On("Scrape", mock.Anything, "https://example.com/empty", mock.Anything).
		Return(articleResult("Empty", "  \n"), nil).Once()
	out, err := Import(context.Background(), env, user, ImportInput{URL: "https://example.com/empty"})
	require.NoError(t, err)
	require.Equal(t, item.StatusCompleted, out.Status)

	err = StreamSummary(context.Background(), env, user, StreamSummaryInput{ID: out.ID}, io.Discard)
	requireCode(t, err, errors.ErrInvalidRequest)

	_, err = SaveSummary(context.Background(), env, user, SaveSummaryInput{ID: out.ID, Summary: "Made up."})
	requireCode(t, err, errors.ErrInvalidRequest)

	sm.AssertNotCalled(t, "StreamSummary", mock.Anything, mock.Anything, mock.Anything)
	sm.AssertNotCalled(t, "ExtractTags", mock.Anything, mock.Anything)
}
