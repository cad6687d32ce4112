package pkactions

import (
	"context"
	"errors"
	"testing"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pickyHandler struct {
	performed []Arguments
}

func (h *pickyHandler) AcceptsArguments(args Arguments) bool {
	return args.Value.Type() == ldvalue.StringType
}

func (h *pickyHandler) Perform(_ context.Context, args Arguments) error {
	h.performed = append(h.performed, args)
	return nil
}

func TestRegisterUnderSeveralNames(t *testing.T) {
	r := NewRegistry()
	h := &pickyHandler{}
	require.NoError(t, r.Register(h, "open_url_action", "^u"))
	assert.Equal(t, []string{"^u", "open_url_action"}, r.Names())

	r.Remove("^u")
	_, found := r.Lookup("^u")
	assert.False(t, found)
	got, found := r.Lookup("open_url_action")
	assert.True(t, found)
	assert.Same(t, h, got)
}

func TestRegisterRejectsMissingNames(t *testing.T) {
	r := NewRegistry()
	assert.ErrorIs(t, r.Register(&pickyHandler{}), ErrNoActionNames)
	assert.ErrorIs(t, r.Register(&pickyHandler{}, "a", ""), ErrNoActionNames)
	assert.Empty(t, r.Names())
}

func TestRegisterReplacesHandler(t *testing.T) {
	r := NewRegistry()
	first, second := &pickyHandler{}, &pickyHandler{}
	require.NoError(t, r.Register(first, "a"))
	require.NoError(t, r.Register(second, "a"))
	require.NoError(t, r.Run(context.Background(), "a", Arguments{Value: ldvalue.String("x")}))
	assert.Len(t, first.performed, 0)
	assert.Len(t, second.performed, 1)
}

func TestRunDefaultsToManualInvocation(t *testing.T) {
	r := NewRegistry()
	h := &pickyHandler{}
	require.NoError(t, r.Register(h, "a"))
	require.NoError(t, r.Run(context.Background(), "a", Arguments{Value: ldvalue.String("x")}))
	require.Len(t, h.performed, 1)
	assert.Equal(t, SituationManualInvocation, h.performed[0].Situation)
}

func TestRunErrors(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&pickyHandler{}, "picky"))
	failure := errors.New("sorry")
	require.NoError(t, r.Register(HandlerFunc(func(context.Context, Arguments) error { return failure }), "failing"))
	ctx := context.Background()

	assert.ErrorIs(t, r.Run(ctx, "missing", Arguments{}), ErrActionNotFound)
	assert.ErrorIs(t, r.Run(ctx, "picky", Arguments{Value: ldvalue.Int(1)}), ErrArgumentsRejected)
	assert.ErrorIs(t, r.Run(ctx, "failing", Arguments{}), failure)
}
