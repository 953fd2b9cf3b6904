package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testCard() *Card {
	tables := map[string]*TableProfile{
		"sales.orders": {
			Schema: "sales", Name: "orders",
			PKColumns: []string{"id"},
			Columns: []*ColumnProfile{
				{Name: "id", Role: RoleKey, IsPrimaryKey: true},
				{Name: "customer_id", Role: RoleID, IsForeignKey: true,
					FK: &FKTarget{TableKey: "sales.customers", Column: "id"}},
			},
			ForeignKeys: []FKEdge{{Column: "customer_id", TargetTable: "sales.customers", TargetColumn: "id"}},
			Archetype:   ArchetypeFact,
			SubjectArea: "area-x",
		},
		"sales.customers": {
			Schema: "sales", Name: "customers",
			PKColumns:   []string{"id"},
			Columns:     []*ColumnProfile{{Name: "id", Role: RoleKey, IsPrimaryKey: true}},
			Archetype:   ArchetypeDimension,
			SubjectArea: "area-x",
		},
	}
	return &Card{
		Dialect:           "postgres",
		TargetFingerprint: "abc123",
		Schemas:           []string{"sales"},
		SubjectAreas: map[string]*SubjectArea{
			"area-x": {ID: "area-x", Name: "orders", Tables: []string{"sales.customers", "sales.orders"}},
		},
		Tables:         tables,
		Edges:          []GraphEdge{{Source: "sales.customers", Target: "sales.orders", Weight: 1}},
		BuiltAt:        time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		ReflectionHash: ReflectionHash(tables, "postgres"),
	}
}

func TestCard_Validate(t *testing.T) {
	card := testCard()
	require.NoError(t, card.Validate())

	t.Run("dangling fk target", func(t *testing.T) {
		c := testCard()
		c.Tables["sales.orders"].ForeignKeys[0].TargetTable = "sales.ghost"
		assert.Error(t, c.Validate())
	})

	t.Run("unassigned table", func(t *testing.T) {
		c := testCard()
		c.SubjectAreas["area-x"].Tables = []string{"sales.orders"}
		assert.Error(t, c.Validate())
	})
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	card := testCard()
	data, err := Encode(card)
	require.NoError(t, err)

	restored, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, card.Dialect, restored.Dialect)
	assert.Equal(t, card.ReflectionHash, restored.ReflectionHash)
	assert.Equal(t, card.TableKeys(), restored.TableKeys())
	assert.Equal(t, CardFingerprint(card), CardFingerprint(restored))
}

func TestDecode_RejectsUnknownVersion(t *testing.T) {
	_, err := Decode([]byte(`{"format_version": 99, "card": {}}`))
	assert.Error(t, err)
}

func TestReflectionHash_IgnoresSampledValues(t *testing.T) {
	a := testCard()
	b := testCard()
	nr := 0.25
	b.Tables["sales.orders"].Columns[0].NullRate = &nr
	b.Tables["sales.orders"].Summary = "different summary"
	b.BuiltAt = time.Now()

	assert.Equal(t,
		ReflectionHash(a.Tables, "postgres"),
		ReflectionHash(b.Tables, "postgres"))
}

func TestReflectionHash_TracksStructure(t *testing.T) {
	a := testCard()
	b := testCard()
	b.Tables["sales.orders"].Columns = append(b.Tables["sales.orders"].Columns,
		&ColumnProfile{Name: "new_col", Type: "text"})

	assert.NotEqual(t,
		ReflectionHash(a.Tables, "postgres"),
		ReflectionHash(b.Tables, "postgres"))
}

func TestStore_PutGet(t *testing.T) {
	s := NewStore(zap.NewNop())
	assert.Nil(t, s.Get())
	assert.Equal(t, "", s.Fingerprint())

	card := testCard()
	s.Put(card)
	assert.Same(t, card, s.Get())
	assert.NotEmpty(t, s.Fingerprint())
}

func TestStore_DiskRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(zap.NewNop())
	card := testCard()
	s.Put(card)
	s.SaveToDir(dir)

	restored := LoadFromDir(dir, card.TargetFingerprint, zap.NewNop())
	require.NotNil(t, restored)
	assert.Equal(t, card.ReflectionHash, restored.ReflectionHash)

	assert.Nil(t, LoadFromDir(dir, "other-target", zap.NewNop()))
	assert.Nil(t, LoadFromDir("", card.TargetFingerprint, zap.NewNop()))
}
