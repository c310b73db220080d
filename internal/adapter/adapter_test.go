package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rostercal/internal/model"
)

func TestRequests_RowsWrapperWithCapitalizedKeys(t *testing.T) {
	raw := []byte(`{"rows":[{"ID":1,"Name":"Bob","Date":"2024-03-01","Status":"Active"}]}`)

	got := Requests(raw)
	require.Len(t, got, 1)
	assert.Equal(t, model.RosterRequest{
		ID:     "1",
		Name:   "Bob",
		Date:   "2024-03-01",
		Status: "Active",
	}, got[0])
	assert.Equal(t, "", got[0].Comment)
	assert.Equal(t, "", got[0].Day)
}

func TestRequests_LocatesRows(t *testing.T) {
	cases := map[string]string{
		"bare array":                 `[{"id":"a","name":"Ann"}]`,
		"rows key":                   `{"rows":[{"id":"a","name":"Ann"}]}`,
		"values key":                 `{"values":[{"id":"a","name":"Ann"}]}`,
		"rows preferred over values": `{"rows":[{"id":"a","name":"Ann"}],"values":[{"id":"b"},{"id":"c"}]}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			got := Requests([]byte(raw))
			require.Len(t, got, 1)
			assert.Equal(t, "a", got[0].ID)
			assert.Equal(t, "Ann", got[0].Name)
		})
	}
}

func TestRequests_MalformedShapesDegradeToEmpty(t *testing.T) {
	for _, raw := range []string{
		`"not an array or object"`,
		`null`,
		``,
		`{`,
		`42`,
		`{"result":"ok"}`,
		`{"rows":"nope"}`,
	} {
		got := Requests([]byte(raw))
		assert.NotNil(t, got, "input %q", raw)
		assert.Empty(t, got, "input %q", raw)
	}
}

func TestRequests_FirstPresentAliasWinsEvenWhenEmpty(t *testing.T) {
	raw := []byte(`[{"name":"","Name":"Shadow","status":null,"Status":"Active","id":"", "ID":7}]`)

	got := Requests(raw)
	require.Len(t, got, 1)
	assert.Equal(t, "", got[0].Name)
	assert.Equal(t, "", got[0].Status)
	assert.Equal(t, "", got[0].ID)
	assert.False(t, got[0].HasID())
}

func TestRequests_StringifiesScalars(t *testing.T) {
	raw := []byte(`[{"id":12345678901234,"request":true,"comment":1.5,"date":{"y":2024}}]`)

	got := Requests(raw)
	require.Len(t, got, 1)
	assert.Equal(t, "12345678901234", got[0].ID)
	assert.Equal(t, "true", got[0].Request)
	assert.Equal(t, "1.5", got[0].Comment)
	assert.Equal(t, `{"y":2024}`, got[0].Date)
}

func TestRequests_TabularRows(t *testing.T) {
	t.Run("header row maps columns", func(t *testing.T) {
		raw := []byte(`{"values":[["Name","Date","Status","ID"],["Cara","2024-04-02","Active",9]]}`)
		got := Requests(raw)
		require.Len(t, got, 1)
		assert.Equal(t, model.RosterRequest{ID: "9", Name: "Cara", Date: "2024-04-02", Status: "Active"}, got[0])
	})

	t.Run("positional default order", func(t *testing.T) {
		raw := []byte(`[[3,"2024-03-01T08:00:00Z","Dan","2024-03-04","Monday","AM","active"]]`)
		got := Requests(raw)
		require.Len(t, got, 1)
		assert.Equal(t, model.RosterRequest{
			ID:        "3",
			Timestamp: "2024-03-01T08:00:00Z",
			Name:      "Dan",
			Date:      "2024-03-04",
			Day:       "Monday",
			Request:   "AM",
			Status:    "active",
		}, got[0])
	})

	t.Run("scalar rows are dropped", func(t *testing.T) {
		got := Requests([]byte(`[1,"x",null,{"id":"ok"}]`))
		require.Len(t, got, 1)
		assert.Equal(t, "ok", got[0].ID)
	})
}

func TestRequestsFromValue_CanonicalPassThrough(t *testing.T) {
	in := []model.RosterRequest{{ID: "1", Name: "Eve"}}
	got := RequestsFromValue(in)
	assert.Equal(t, in, got)

	got[0].Name = "changed"
	assert.Equal(t, "Eve", in[0].Name)
}

func TestTeamMembers(t *testing.T) {
	raw := []byte(`[" Alice ","Bob",{"name":"Cara"},{"Name":"Alice"},"alice","",null,{"role":"x"}]`)
	assert.Equal(t, []string{"Alice", "Bob", "Cara", "alice"}, TeamMembers(raw))

	assert.Equal(t, []string{"Zed"}, TeamMembers([]byte(`{"rows":["Zed"]}`)))
	assert.Empty(t, TeamMembers([]byte(`{"result":"error","message":"nope"}`)))
	assert.Empty(t, TeamMembers(nil))
}
