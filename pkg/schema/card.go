package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"

	"go.uber.org/zap"
)

// cardFormatVersion guards the persisted card format. Bump when the card
// shape changes; stale cache files are ignored, not migrated.
const cardFormatVersion = 1

// Store holds the current card behind an atomic pointer. Readers take a
// snapshot; the coordinator installs new cards with Put.
type Store struct {
	card   atomic.Pointer[Card]
	logger *zap.Logger
}

// NewStore creates an empty store.
func NewStore(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{logger: logger.Named("card-store")}
}

// Get returns the current card, nil before the first Put.
func (s *Store) Get() *Card {
	return s.card.Load()
}

// Put installs a new card.
func (s *Store) Put(c *Card) {
	s.card.Store(c)
}

// Fingerprint returns the content fingerprint of the current card, empty
// when no card is installed.
func (s *Store) Fingerprint() string {
	c := s.Get()
	if c == nil {
		return ""
	}
	return CardFingerprint(c)
}

// Encode serializes a card to its portable byte form.
func Encode(c *Card) ([]byte, error) {
	envelope := struct {
		FormatVersion int   `json:"format_version"`
		Card          *Card `json:"card"`
	}{cardFormatVersion, c}
	return json.MarshalIndent(envelope, "", "  ")
}

// Decode restores a card from its portable byte form. Cards written by a
// different format version are rejected.
func Decode(data []byte) (*Card, error) {
	var envelope struct {
		FormatVersion int   `json:"format_version"`
		Card          *Card `json:"card"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decoding card: %w", err)
	}
	if envelope.FormatVersion != cardFormatVersion {
		return nil, fmt.Errorf("card format version %d not supported", envelope.FormatVersion)
	}
	if envelope.Card == nil {
		return nil, fmt.Errorf("decoding card: empty envelope")
	}
	return envelope.Card, nil
}

// CardFingerprint hashes the full serialized card. Map keys serialize in
// sorted order, so the hash is stable for equal content.
func CardFingerprint(c *Card) string {
	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return shortHash(data)
}

// TargetFingerprint identifies the connection target without exposing it.
func TargetFingerprint(dsn string) string {
	return shortHash([]byte(dsn))
}

// ReflectionHash hashes reflected structure plus profiling parameters only.
// Sampled values, timestamps and build metadata do not participate, so two
// builds over the same structure always agree.
func ReflectionHash(tables map[string]*TableProfile, dialect string) string {
	type colStruct struct {
		Name     string `json:"n"`
		Type     string `json:"t"`
		Nullable bool   `json:"null"`
		PK       bool   `json:"pk"`
	}
	type tableStruct struct {
		Key     string      `json:"k"`
		Columns []colStruct `json:"c"`
		PK      []string    `json:"pk"`
		FKs     []FKEdge    `json:"fk"`
	}
	keys := make([]string, 0, len(tables))
	for k := range tables {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	payload := struct {
		Dialect   string        `json:"dialect"`
		Tables    []tableStruct `json:"tables"`
		Threshold int           `json:"value_constraint_threshold"`
		MinArea   int           `json:"min_area_size"`
	}{Dialect: dialect, Threshold: ValueConstraintThreshold, MinArea: MinAreaSize}

	for _, k := range keys {
		t := tables[k]
		ts := tableStruct{Key: k, PK: t.PKColumns, FKs: t.ForeignKeys}
		for _, c := range t.Columns {
			ts.Columns = append(ts.Columns, colStruct{c.Name, c.Type, c.Nullable, c.IsPrimaryKey})
		}
		payload.Tables = append(payload.Tables, ts)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	return shortHash(data)
}

func shortHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:16]
}

// SaveToDir persists the card under dir, keyed by target fingerprint.
// Failures are logged, not returned: the cache is best effort.
func (s *Store) SaveToDir(dir string) {
	c := s.Get()
	if c == nil || dir == "" {
		return
	}
	data, err := Encode(c)
	if err != nil {
		s.logger.Warn("encoding card for cache", zap.Error(err))
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.logger.Warn("creating card cache dir", zap.Error(err))
		return
	}
	path := filepath.Join(dir, "card-"+c.TargetFingerprint+".json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		s.logger.Warn("writing card cache", zap.Error(err))
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		s.logger.Warn("installing card cache", zap.Error(err))
		return
	}
	s.logger.Info("card cached", zap.String("path", path))
}

// LoadFromDir restores a previously cached card for the given target.
// Returns nil when no usable cache exists.
func LoadFromDir(dir, targetFingerprint string, logger *zap.Logger) *Card {
	if dir == "" {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	path := filepath.Join(dir, "card-"+targetFingerprint+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	card, err := Decode(data)
	if err != nil {
		logger.Warn("stale card cache ignored", zap.String("path", path), zap.Error(err))
		return nil
	}
	if card.TargetFingerprint != targetFingerprint {
		return nil
	}
	return card
}
