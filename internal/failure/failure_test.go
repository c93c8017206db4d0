package failure

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlainErrorsAreTerminal(t *testing.T) {
	err := errors.New("bad xml")
	require.False(t, IsRecoverable(err))
	require.False(t, IsDuplicate(err))
	require.Empty(t, Destination(err))
	require.Nil(t, New(nil))
}

func TestClassification(t *testing.T) {
	base := io.ErrUnexpectedEOF

	rec := Recoverable(base)
	require.True(t, IsRecoverable(rec))
	require.ErrorIs(t, rec, io.ErrUnexpectedEOF)

	dup := Duplicate(base)
	require.True(t, IsDuplicate(dup))
	require.False(t, IsRecoverable(dup))

	red := Redirect(base, "/data/rejected")
	require.Equal(t, "/data/rejected", Destination(red))
}

func TestOptionsMergeIntoExistingFailure(t *testing.T) {
	err := Redirect(Recoverable(errors.New("busy")), "/data/later")
	require.True(t, IsRecoverable(err))
	require.Equal(t, "/data/later", Destination(err))
}

func TestClassificationSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("ship a.xml: %w", Recoverable(errors.New("timeout")))
	require.True(t, IsRecoverable(err))
	require.Equal(t, "ship a.xml: timeout", err.Error())
}

func TestResponseBody(t *testing.T) {
	re := &ResponseError{URL: "http://api/x", StatusCode: 400, Status: "400 Bad Request", Body: []byte(`{"error":"nope"}`)}
	err := New(re)
	body, ok := ResponseBody(err)
	require.True(t, ok)
	require.Equal(t, `{"error":"nope"}`, string(body))
	require.Contains(t, err.Error(), "400 Bad Request")

	_, ok = ResponseBody(errors.New("plain"))
	require.False(t, ok)
}

func TestTraceIncludesCausesAndStack(t *testing.T) {
	err := fmt.Errorf("process a.xml: %w", New(errors.New("schema violation")))
	trace := Trace(err)
	lines := strings.Split(trace, "\n")
	require.Equal(t, "process a.xml: schema violation", lines[0])
	require.Contains(t, trace, "caused by: schema violation")
	require.Contains(t, trace, "failure_test.go")
	require.Empty(t, Trace(nil))
}

func TestFormatVerbs(t *testing.T) {
	err := Errorf("bad row %d", 3)
	require.Equal(t, "bad row 3", fmt.Sprintf("%v", err))
	require.Equal(t, "bad row 3", fmt.Sprintf("%s", err))
	require.Contains(t, fmt.Sprintf("%+v", err), "failure_test.go")
}
