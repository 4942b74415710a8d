package memory

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantStore keeps turns as points of a single cosine collection. Turn ids
// are mapped to UUID point ids; the original id travels in the payload.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
	dimension  int
	timeout    time.Duration
	logger     *slog.Logger
}

var _ Store = (*QdrantStore)(nil)

func NewQdrantStore(log *slog.Logger, baseURL, apiKey, collection string, dimension int, timeout time.Duration) (*QdrantStore, error) {
	host, port, useTLS, err := parseQdrantEndpoint(baseURL)
	if err != nil {
		return nil, err
	}
	if collection == "" {
		collection = "memory"
	}
	if dimension <= 0 {
		dimension = 1536
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: apiKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, err
	}

	store := &QdrantStore{
		client:     client,
		collection: collection,
		dimension:  dimension,
		timeout:    timeoutOrDefault(timeout),
		logger:     log.With(slog.String("store", "qdrant"), slog.String("collection", collection)),
	}

	ctx, cancel := context.WithTimeout(context.Background(), store.timeout)
	defer cancel()
	if err := store.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return store, nil
}

func (s *QdrantStore) Upsert(ctx context.Context, turn Turn) error {
	if len(turn.Embedding) != s.dimension {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(turn.Embedding), s.dimension)
	}
	payload, err := qdrant.TryValueMap(turn.payload())
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDUUID(pointID(turn.ID)),
			Vectors: qdrant.NewVectorsDense(turn.Embedding),
			Payload: payload,
		}},
	})
	return err
}

func (s *QdrantStore) Query(ctx context.Context, vector []float32, filter Filter, limit int) ([]Match, error) {
	if err := filter.validate(); err != nil {
		return nil, err
	}
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), s.dimension)
	}
	if limit <= 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQueryDense(vector),
		Limit:          qdrant.PtrOf(uint64(limit)),
		Filter:         buildQdrantFilter(filter),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(results))
	for _, scored := range results {
		matches = append(matches, Match{
			Record:     recordFromPayload(valueMapToInterface(scored.GetPayload())),
			Similarity: float64(scored.GetScore()),
		})
	}
	return matches, nil
}

// Scan scrolls the newest points first using the timestamp payload index.
func (s *QdrantStore) Scan(ctx context.Context, filter Filter, limit int) ([]Record, error) {
	if err := filter.validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: s.collection,
		Limit:          qdrant.PtrOf(uint32(limit)),
		Filter:         buildQdrantFilter(filter),
		WithPayload:    qdrant.NewWithPayload(true),
		OrderBy: &qdrant.OrderBy{
			Key:       payloadTimestamp,
			Direction: qdrant.Direction_Desc.Enum(),
		},
	})
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(points))
	for _, point := range points {
		records = append(records, recordFromPayload(valueMapToInterface(point.GetPayload())))
	}
	return records, nil
}

func (s *QdrantStore) DeleteAll(ctx context.Context, filter Filter) (int, error) {
	if err := filter.validate(); err != nil {
		return 0, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	qFilter := buildQdrantFilter(filter)
	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Filter:         qFilter,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("count points: %w", err)
	}
	if count == 0 {
		return 0, nil
	}
	if _, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelectorFilter(qFilter),
	}); err != nil {
		return 0, err
	}
	return int(count), nil
}

func (s *QdrantStore) Close() error {
	return s.client.Close()
}

func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return err
	}
	if exists {
		if err := s.checkDimension(ctx); err != nil {
			return err
		}
	} else {
		s.logger.Info("creating collection", slog.Int("dimension", s.dimension))
		if err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(s.dimension),
				Distance: qdrant.Distance_Cosine,
			}),
		}); err != nil {
			return err
		}
	}
	return s.ensureIndexes(ctx)
}

func (s *QdrantStore) checkDimension(ctx context.Context) error {
	info, err := s.client.GetCollectionInfo(ctx, s.collection)
	if err != nil {
		return err
	}
	params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()
	if params == nil {
		return fmt.Errorf("collection %s uses named vectors; a single dense vector is required", s.collection)
	}
	if int(params.GetSize()) != s.dimension {
		return fmt.Errorf("%w: collection %s has %d, configured %d", ErrDimensionMismatch, s.collection, params.GetSize(), s.dimension)
	}
	return nil
}

// ensureIndexes creates the payload indexes used by filters and by the
// ordered scroll in Scan. Creating an existing index is a no-op on the server.
func (s *QdrantStore) ensureIndexes(ctx context.Context) error {
	indexes := []struct {
		field string
		kind  qdrant.FieldType
	}{
		{payloadBotID, qdrant.FieldType_FieldTypeKeyword},
		{payloadChatID, qdrant.FieldType_FieldTypeKeyword},
		{payloadRole, qdrant.FieldType_FieldTypeKeyword},
		{payloadTimestamp, qdrant.FieldType_FieldTypeFloat},
	}
	for _, idx := range indexes {
		if _, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.collection,
			FieldName:      idx.field,
			FieldType:      idx.kind.Enum(),
			Wait:           qdrant.PtrOf(true),
		}); err != nil {
			return fmt.Errorf("create index %s: %w", idx.field, err)
		}
	}
	return nil
}

func parseQdrantEndpoint(endpoint string) (string, int, bool, error) {
	if endpoint == "" {
		return "127.0.0.1", 6334, false, nil
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return "", 0, false, err
	}
	host := parsed.Hostname()
	if host == "" {
		host = "127.0.0.1"
	}
	port := 6334
	if parsed.Port() != "" {
		parsedPort, err := strconv.Atoi(parsed.Port())
		if err != nil {
			return "", 0, false, err
		}
		port = parsedPort
	}
	useTLS := parsed.Scheme == "https"
	return host, port, useTLS, nil
}

func timeoutOrDefault(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return 10 * time.Second
	}
	return timeout
}

func buildQdrantFilter(filter Filter) *qdrant.Filter {
	fields := filter.fields()
	conditions := make([]*qdrant.Condition, 0, len(fields))
	for _, key := range []string{payloadBotID, payloadChatID, payloadRole} {
		if value, ok := fields[key]; ok {
			conditions = append(conditions, qdrant.NewMatch(key, value))
		}
	}
	return &qdrant.Filter{Must: conditions}
}

func valueMapToInterface(values map[string]*qdrant.Value) map[string]any {
	result := make(map[string]any, len(values))
	for key, value := range values {
		result[key] = valueToInterface(value)
	}
	return result
}

func valueToInterface(value *qdrant.Value) any {
	if value == nil {
		return nil
	}
	switch kind := value.GetKind().(type) {
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_StructValue:
		return valueMapToInterface(kind.StructValue.GetFields())
	case *qdrant.Value_ListValue:
		items := make([]any, 0, len(kind.ListValue.GetValues()))
		for _, item := range kind.ListValue.GetValues() {
			items = append(items, valueToInterface(item))
		}
		return items
	default:
		return nil
	}
}
