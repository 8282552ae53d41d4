package widget

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/support-widget/backend/internal/model/widget"
)

func validDraft() widget.CallbackRequest {
	return widget.CallbackRequest{Name: "Jane", Phone: "+12125551234", Consent: true}
}

func requireCode(t *testing.T, err error, code widget.ValidationCode) {
	t.Helper()
	var verr *widget.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, code, verr.Code)
	require.NotEmpty(t, verr.Message)
}

// submit runs Submit and returns the delivery outcome. On an inline loop the
// outcome is reported before Submit returns.
func submit(form *CallbackForm) error {
	outcome := errors.New("delivery outcome not reported")
	if err := form.Submit(context.Background(), func(err error) { outcome = err }); err != nil {
		return err
	}
	return outcome
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(validDraft()))

	noPlus := validDraft()
	noPlus.Phone = "12125551234"
	requireCode(t, Validate(noPlus), widget.InvalidPhone)

	noName := validDraft()
	noName.Name = "   "
	requireCode(t, Validate(noName), widget.MissingName)

	noConsent := validDraft()
	noConsent.Consent = false
	requireCode(t, Validate(noConsent), widget.MissingConsent)
}

func TestValidateFirstFailureWins(t *testing.T) {
	requireCode(t, Validate(widget.CallbackRequest{}), widget.MissingName)
	requireCode(t, Validate(widget.CallbackRequest{Name: "Jane", Phone: "555-1234"}), widget.InvalidPhone)
}

func TestValidatePhoneShapes(t *testing.T) {
	cases := map[string]bool{
		"+15551234567":      true,
		"+12":               true,
		"+1":                false,
		"+0123456":          false,
		"+1234567890123456": false,
		"+123456789012345":  true,
		"+1 555 123":        false,
		"":                  false,
	}
	for phone, ok := range cases {
		draft := validDraft()
		draft.Phone = phone
		err := Validate(draft)
		if ok {
			require.NoError(t, err, phone)
		} else {
			requireCode(t, err, widget.InvalidPhone)
		}
	}
}

func TestPreferredTimeIsNeverValidated(t *testing.T) {
	draft := validDraft()
	draft.PreferredTime = "¯\\_(ツ)_/¯ any time"
	require.NoError(t, Validate(draft))
}

func TestFormSubmitSuccessClearsDraftAndDismisses(t *testing.T) {
	clock := newManualClock()
	var delivered []widget.CallbackRequest
	dismissed := 0
	form := NewCallbackForm(inlineLoop{clock}, CallbackSinkFunc(func(_ context.Context, req widget.CallbackRequest) error {
		delivered = append(delivered, req)
		return nil
	}), FormConfig{
		SuccessDelay:   DefaultSuccessDelay,
		SuccessMessage: "Thanks!",
		OnDismiss:      func() { dismissed++ },
	})

	draft := validDraft()
	draft.PreferredTime = "Weekday afternoons"
	form.Update(draft)
	require.NoError(t, submit(form))

	require.Equal(t, []widget.CallbackRequest{draft}, delivered)
	state := form.State()
	require.Equal(t, widget.CallbackRequest{}, state.Draft)
	require.Equal(t, "Thanks!", state.Success)
	require.Nil(t, state.Error)

	clock.Advance(DefaultSuccessDelay - time.Millisecond)
	require.Equal(t, "Thanks!", form.State().Success)
	require.Zero(t, dismissed)

	clock.Advance(time.Millisecond)
	require.Empty(t, form.State().Success)
	require.Equal(t, 1, dismissed)
}

func TestFormSubmitFailureKeepsFields(t *testing.T) {
	clock := newManualClock()
	form := NewCallbackForm(inlineLoop{clock}, nil, FormConfig{SuccessDelay: DefaultSuccessDelay})

	draft := validDraft()
	draft.Phone = "555-1234"
	form.Update(draft)

	err := submit(form)
	requireCode(t, err, widget.InvalidPhone)
	state := form.State()
	require.Equal(t, draft, state.Draft)
	require.Equal(t, widget.InvalidPhone, state.Error.Code)
	require.Zero(t, clock.Scheduled())

	// Resubmission is unlimited and clears the previous error.
	draft.Phone = "+15551234567"
	form.Update(draft)
	require.NoError(t, submit(form))
	require.Nil(t, form.State().Error)
}

func TestFormDeliveryFailureKeepsFields(t *testing.T) {
	clock := newManualClock()
	form := NewCallbackForm(inlineLoop{clock}, CallbackSinkFunc(func(context.Context, widget.CallbackRequest) error {
		return errors.New("stream unavailable")
	}), FormConfig{SuccessDelay: DefaultSuccessDelay})

	form.Update(validDraft())
	requireCode(t, submit(form), widget.DeliveryFailed)
	require.Equal(t, validDraft(), form.State().Draft)
	require.Empty(t, form.State().Success)
}

func TestFormResetCancelsDismissal(t *testing.T) {
	clock := newManualClock()
	dismissed := 0
	form := NewCallbackForm(inlineLoop{clock}, nil, FormConfig{
		SuccessDelay: DefaultSuccessDelay,
		OnDismiss:    func() { dismissed++ },
	})

	form.Update(validDraft())
	require.NoError(t, submit(form))
	require.Equal(t, 1, clock.Scheduled())

	form.Reset()
	require.Zero(t, clock.Scheduled())
	clock.Advance(time.Minute)
	require.Zero(t, dismissed)
	require.Equal(t, widget.CallbackState{}, form.State())
}

func TestFormResetDuringDeliveryDropsResult(t *testing.T) {
	clock := newManualClock()
	loop := &parkedLoop{clock: clock}
	var deliveryCtx context.Context
	form := NewCallbackForm(loop, CallbackSinkFunc(func(ctx context.Context, _ widget.CallbackRequest) error {
		deliveryCtx = ctx
		return nil
	}), FormConfig{SuccessDelay: DefaultSuccessDelay, SuccessMessage: "Thanks!"})

	var outcome error
	form.Update(validDraft())
	require.NoError(t, form.Submit(context.Background(), func(err error) { outcome = err }))
	require.True(t, form.State().Submitting)

	form.Reset()
	require.ErrorIs(t, outcome, ErrSubmissionCancelled)
	require.ErrorIs(t, deliveryCtx.Err(), context.Canceled)

	loop.release()
	require.Equal(t, widget.CallbackState{}, form.State())
	require.Zero(t, clock.Scheduled())
}

func TestFormRejectsSubmitWhileDelivering(t *testing.T) {
	clock := newManualClock()
	loop := &parkedLoop{clock: clock}
	form := NewCallbackForm(loop, nil, FormConfig{SuccessDelay: DefaultSuccessDelay})

	form.Update(validDraft())
	require.NoError(t, form.Submit(context.Background(), nil))
	require.ErrorIs(t, form.Submit(context.Background(), nil), ErrSubmitPending)

	loop.release()
	require.False(t, form.State().Submitting)
	require.Equal(t, 1, clock.Scheduled())
}

func TestFormKeepsEditsMadeDuringDelivery(t *testing.T) {
	clock := newManualClock()
	loop := &parkedLoop{clock: clock}
	form := NewCallbackForm(loop, nil, FormConfig{SuccessDelay: DefaultSuccessDelay, SuccessMessage: "Thanks!"})

	form.Update(validDraft())
	require.NoError(t, form.Submit(context.Background(), nil))

	edited := validDraft()
	edited.Name = "Janet"
	form.Update(edited)

	loop.release()
	state := form.State()
	require.Equal(t, edited, state.Draft)
	require.Equal(t, "Thanks!", state.Success)
}
