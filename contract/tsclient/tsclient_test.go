package tsclient_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/stackgen/contract"
	"github.com/syssam/stackgen/contract/tsclient"
)

func testSet(t *testing.T) *contract.Set {
	t.Helper()
	set, err := contract.NewSet(
		&contract.Contract{Name: "User", Description: "An account.", Fields: []contract.Field{
			{Name: "id", Type: contract.ID},
			{Name: "email", Type: contract.String, Description: "Primary address."},
			{Name: "displayName", Type: contract.String, Optional: true},
			{Name: "loginCount", Type: contract.Int},
			{Name: "score", Type: contract.Float},
			{Name: "admin", Type: contract.Bool},
			{Name: "createdAt", Type: contract.Time},
			{Name: "profile", Type: contract.JSON, Optional: true},
			{Name: "sessions", Type: contract.Ref, Ref: "Session", List: true},
			{Name: "previous", Type: contract.Ref, Ref: "Session", List: true, Optional: true},
		}},
		&contract.Contract{Name: "Session", Fields: []contract.Field{
			{Name: "token", Type: contract.String},
		}},
	)
	require.NoError(t, err)
	return set
}

func TestRender(t *testing.T) {
	out, err := tsclient.New().Render(testSet(t))
	require.NoError(t, err)
	assert.Equal(t, `// Code generated by stackgen. DO NOT EDIT.

export type Int = number;
export type Float = number;
export type DateTime = string;
export type ID = string;
export type JSONValue = unknown;

export interface Session {
  token: string;
}

/** An account. */
export interface User {
  id: ID;
  /** Primary address. */
  email: string;
  displayName?: string | null;
  loginCount: Int;
  score: Float;
  admin: boolean;
  createdAt: DateTime;
  profile?: JSONValue | null;
  sessions: Session[];
  previous?: Session[] | null;
}
`, string(out))
}

func TestParseRoundTrip(t *testing.T) {
	set := testSet(t)
	r := tsclient.New()
	out, err := r.Render(set)
	require.NoError(t, err)
	shape, err := r.Parse(out)
	require.NoError(t, err)
	assert.Equal(t, set.Shape(), shape)
}

func TestParse(t *testing.T) {
	r := tsclient.New("web/app/types.ts")
	assert.Equal(t, "web/app/types.ts", r.Path())

	t.Run("drift_detected", func(t *testing.T) {
		shape, err := r.Parse([]byte("export interface User {\n  id: string;\n}\n"))
		require.NoError(t, err)
		want := contract.Shape{{Name: "User", Fields: []contract.Field{{Name: "id", Type: contract.ID}}}}
		assert.Error(t, contract.Compare(want, shape))
	})

	t.Run("syntax_error", func(t *testing.T) {
		_, err := r.Parse([]byte("export interface User {\n  id: ;\n"))
		require.Error(t, err)
	})

	t.Run("optional_marker_without_null", func(t *testing.T) {
		_, err := r.Parse([]byte("export interface User {\n  name?: string;\n}\n"))
		require.Error(t, err)
	})

	t.Run("aliases_skipped", func(t *testing.T) {
		shape, err := r.Parse([]byte("export type ID = string;\n"))
		require.NoError(t, err)
		assert.Empty(t, shape)
	})
}
