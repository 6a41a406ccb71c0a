package history

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fxamacker/cbor/v2"
	bolt "go.etcd.io/bbolt"

	"github.com/plcalarm/plcalarm-go/pkg/wire"
)

var bucketEvents = []byte("events")

// CBOR modes for record encoding. Canonical map ordering keeps records
// byte-comparable across writes of the same content.
var (
	recEncMode cbor.EncMode
	recDecMode cbor.DecMode
)

func init() {
	encOpts := cbor.EncOptions{
		Sort: cbor.SortCanonical,
		Time: cbor.TimeRFC3339Nano,
	}
	var err error
	recEncMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("history: invalid CBOR encode options: %v", err))
	}
	recDecMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("history: invalid CBOR decode options: %v", err))
	}
}

// Record is the persisted form of a decoded event.
type Record struct {
	// EventClassID is the canonical dashed GUID of the event class.
	EventClassID string `cbor:"1,keyasint"`

	// EventID identifies the event definition within its class.
	EventID uint32 `cbor:"2,keyasint"`

	// Severity is the decoded severity level.
	Severity wire.Severity `cbor:"3,keyasint"`

	// IsAlarm indicates an alarm-kind event.
	IsAlarm bool `cbor:"4,keyasint"`

	// AlarmState is the last seen alarm state.
	AlarmState wire.AlarmState `cbor:"5,keyasint"`

	// TimeRaised, TimeCleared and TimeConfirmed mirror the event's
	// timestamps; the zero value means absent.
	TimeRaised    time.Time `cbor:"6,keyasint,omitempty"`
	TimeCleared   time.Time `cbor:"7,keyasint,omitempty"`
	TimeConfirmed time.Time `cbor:"8,keyasint,omitempty"`

	// SourceName and Message are the heuristically extracted strings.
	SourceName string `cbor:"9,keyasint,omitempty"`
	Message    string `cbor:"10,keyasint,omitempty"`

	// StoredAt is when the record was last written.
	StoredAt time.Time `cbor:"11,keyasint"`
}

// Filter selects records for Query. The zero value matches everything.
type Filter struct {
	// Since and Until bound TimeRaised, inclusive. Zero values are open.
	Since time.Time
	Until time.Time

	// EventClassID restricts to one event class when non-empty.
	EventClassID string

	// MinSeverity drops records below the given severity when non-nil.
	MinSeverity *wire.Severity

	// AlarmsOnly restricts to alarm-kind records.
	AlarmsOnly bool

	// Limit caps the number of returned records; 0 means no cap.
	Limit int
}

func (f Filter) matches(r *Record) bool {
	if !f.Since.IsZero() && r.TimeRaised.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && r.TimeRaised.After(f.Until) {
		return false
	}
	if f.EventClassID != "" && r.EventClassID != f.EventClassID {
		return false
	}
	if f.MinSeverity != nil && r.Severity < *f.MinSeverity {
		return false
	}
	if f.AlarmsOnly && !r.IsAlarm {
		return false
	}
	return true
}

// Store is a bbolt-backed event history.
type Store struct {
	db     *bolt.DB
	logger *slog.Logger
}

// StoreConfig configures a Store.
type StoreConfig struct {
	// Logger receives operational log records. Nil disables logging.
	Logger *slog.Logger
}

// Open opens (creating if necessary) the history database at path.
func Open(path string, config StoreConfig) (*Store, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketEvents)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create events bucket: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append writes one decoded event, overwriting any previous record with the
// same (class ID, event ID, raise time) identity.
func (s *Store) Append(event *wire.Event) error {
	record := &Record{
		EventClassID:  event.EventClassID,
		EventID:       event.EventID,
		Severity:      event.Severity,
		IsAlarm:       event.IsAlarm,
		AlarmState:    event.AlarmState,
		TimeRaised:    event.TimeRaised,
		TimeCleared:   event.TimeCleared,
		TimeConfirmed: event.TimeConfirmed,
		SourceName:    event.SourceName,
		Message:       event.Message,
		StoredAt:      time.Now().UTC(),
	}

	data, err := recEncMode.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEvents).Put(recordKey(event), data)
	})
}

// Consumer returns a broker consumer that appends every event to the store.
// Append failures are logged, never propagated into the delivery path.
func (s *Store) Consumer() func(*wire.Event) {
	return func(event *wire.Event) {
		if err := s.Append(event); err != nil {
			s.logger.Warn("history append failed",
				"class", event.EventClassID,
				"event", event.EventID,
				"error", err)
		}
	}
}

// Query returns records matching the filter, sorted by raise time ascending.
func (s *Store) Query(filter Filter) ([]*Record, error) {
	var records []*Record
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEvents).ForEach(func(k, v []byte) error {
			record := &Record{}
			if err := recDecMode.Unmarshal(v, record); err != nil {
				return fmt.Errorf("decode record %x: %w", k, err)
			}
			if filter.matches(record) {
				records = append(records, record)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].TimeRaised.Before(records[j].TimeRaised)
	})
	if filter.Limit > 0 && len(records) > filter.Limit {
		records = records[:filter.Limit]
	}
	return records, nil
}

// Count returns the total number of stored records.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketEvents).Stats().KeyN
		return nil
	})
	return n, err
}

// recordKey builds the bucket key from the event's natural identity:
// class ID, event ID (big-endian for byte-order sorting), raise time.
func recordKey(event *wire.Event) []byte {
	key := make([]byte, 0, len(event.EventClassID)+12)
	key = append(key, event.EventClassID...)
	key = binary.BigEndian.AppendUint32(key, event.EventID)
	key = binary.BigEndian.AppendUint64(key, uint64(event.TimeRaised.UnixNano()))
	return key
}
