package loading

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fyerfyer/fin-data-pipeline/internal/database"
	"github.com/fyerfyer/fin-data-pipeline/internal/errs"
	"github.com/fyerfyer/fin-data-pipeline/internal/repository"
	"github.com/fyerfyer/fin-data-pipeline/internal/schema"
	"github.com/fyerfyer/fin-data-pipeline/internal/structuring"
	"github.com/fyerfyer/fin-data-pipeline/internal/vectordb"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func macroRecord(indicator string) structuring.Record {
	return structuring.Record{
		"indicador_nombre": indicator,
		"fecha_dato":       "31/01/2024",
		"valor_numerico":   "7,5",
		"id_unidad_medida": 1,
		"id_frecuencia":    2,
		"fuente_dato":      "BCP",
	}
}

func vectors(n, dim int) []vectordb.Record {
	out := make([]vectordb.Record, n)
	for i := range out {
		v := make([]float32, dim)
		v[0] = 1
		out[i] = vectordb.Record{
			ID:       fmt.Sprintf("00000000-0000-5000-8000-%012d", i),
			Values:   v,
			Metadata: map[string]interface{}{schema.MetaChunkID: i},
		}
	}
	return out
}

func newMockLoader(t *testing.T, cfg Config) (*Loader, *mockRecordRepo, *mockVectorStore) {
	t.Helper()
	records := &mockRecordRepo{}
	store := &mockVectorStore{}
	t.Cleanup(func() {
		records.AssertExpectations(t)
		store.AssertExpectations(t)
	})
	return NewLoader(records, store, cfg, quietLogger()), records, store
}

func TestLoadStructuredCoercesBeforeInsert(t *testing.T) {
	l, records, _ := newMockLoader(t, Config{})
	records.On("Insert", mock.Anything, schema.TableDatoMacroeconomico, mock.Anything).
		Run(func(args mock.Arguments) {
			rows := args.Get(2).([]map[string]interface{})
			require.Len(t, rows, 1)
			assert.Equal(t, "2024-01-31", rows[0]["fecha_dato"])
			assert.Equal(t, 7.5, rows[0]["valor_numerico"])
			assert.Equal(t, "1", rows[0]["id_unidad_medida"])
		}).
		Return(1, nil).Once()

	res := l.LoadStructured(context.Background(), "dato_macroeconomico", macroRecord("IPC"))
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.Count)
	assert.Equal(t, schema.TableDatoMacroeconomico, res.Target)
}

// TestLoadStructuredRejectsWholeBatch 一条无效则整批不写入
func TestLoadStructuredRejectsWholeBatch(t *testing.T) {
	l, records, _ := newMockLoader(t, Config{})

	bad := macroRecord("Tipo de cambio")
	delete(bad, "fuente_dato")
	res := l.LoadStructured(context.Background(), schema.TableDatoMacroeconomico, macroRecord("IPC"), bad)

	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, errs.ErrValidationFailed)
	assert.Contains(t, res.Message, "1 of 2 records")
	var pe *errs.PipelineError
	require.ErrorAs(t, res.Err, &pe)
	assert.Contains(t, pe.Details["issues"], "record 1: Missing required fields: fuente_dato")
	records.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything, mock.Anything)
}

// TestUnconvertibleRequiredValue 必填字段无法转换时视为缺失
func TestUnconvertibleRequiredValue(t *testing.T) {
	l, records, _ := newMockLoader(t, Config{})

	rec := macroRecord("IPC")
	rec["fecha_dato"] = "fin de mes"
	res := l.LoadStructured(context.Background(), schema.TableDatoMacroeconomico, rec)
	assert.ErrorIs(t, res.Err, errs.ErrValidationFailed)
	records.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything, mock.Anything)
}

func TestUnknownSchemaNoStoreCalls(t *testing.T) {
	l, records, store := newMockLoader(t, Config{})
	ctx := context.Background()

	res := l.LoadStructured(ctx, "Tabla_Inexistente", macroRecord("IPC"))
	assert.ErrorIs(t, res.Err, errs.ErrUnknownSchema)

	res = l.LoadVector(ctx, "indice-inexistente", vectors(1, schema.DefaultEmbeddingDimension))
	assert.ErrorIs(t, res.Err, errs.ErrUnknownSchema)

	lr := l.LoadByCategory(ctx, "deportes", []structuring.Record{macroRecord("IPC")}, nil)
	assert.Equal(t, StatusFailed, lr.Status)
	assert.ErrorIs(t, lr.Err, errs.ErrUnknownSchema)

	records.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything)
}

func TestLoadVectorDimensionMismatch(t *testing.T) {
	l, _, store := newMockLoader(t, Config{})

	vecs := vectors(3, schema.DefaultEmbeddingDimension)
	vecs[2].Values = vecs[2].Values[:100]
	res := l.LoadVector(context.Background(), schema.IndexNoticiaRelevante, vecs)

	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, errs.ErrValidationFailed)
	assert.ErrorIs(t, res.Err, vectordb.ErrInvalidDimension)
	store.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything)
}

func TestLoadVectorShape(t *testing.T) {
	l, _, store := newMockLoader(t, Config{})
	ctx := context.Background()

	noID := vectors(1, schema.DefaultEmbeddingDimension)
	noID[0].ID = ""
	assert.ErrorIs(t, l.LoadVector(ctx, schema.IndexNoticiaRelevante, noID).Err, errs.ErrValidationFailed)

	noMeta := vectors(1, schema.DefaultEmbeddingDimension)
	noMeta[0].Metadata = nil
	assert.ErrorIs(t, l.LoadVector(ctx, schema.IndexNoticiaRelevante, noMeta).Err, errs.ErrValidationFailed)

	assert.ErrorIs(t, l.LoadVector(ctx, schema.IndexNoticiaRelevante, nil).Err, errs.ErrValidationFailed)
	store.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything)
}

func TestLoadVectorBatches(t *testing.T) {
	l, _, store := newMockLoader(t, Config{BatchSize: 2})
	store.On("Upsert", mock.Anything, schema.IndexDatoMacroeconomico, mock.Anything).
		Return(nil).Times(3)

	res := l.LoadVector(context.Background(), schema.IndexDatoMacroeconomico, vectors(5, schema.DefaultEmbeddingDimension))
	assert.True(t, res.Success)
	assert.Equal(t, 5, res.Count)

	var sizes []int
	for _, c := range store.Calls {
		sizes = append(sizes, len(c.Arguments.Get(2).([]vectordb.Record)))
	}
	assert.Equal(t, []int{2, 2, 1}, sizes)
}

func TestLoadVectorFailureMidway(t *testing.T) {
	l, _, store := newMockLoader(t, Config{BatchSize: 2})
	store.On("Upsert", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	store.On("Upsert", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("qdrant: 503")).Once()

	res := l.LoadVector(context.Background(), schema.IndexDatoMacroeconomico, vectors(5, schema.DefaultEmbeddingDimension))
	assert.False(t, res.Success)
	assert.Equal(t, 2, res.Count)
	assert.ErrorIs(t, res.Err, errs.ErrConnectionFailure)
}

func TestLoadByCategoryStatus(t *testing.T) {
	ctx := context.Background()
	structured := []structuring.Record{macroRecord("IPC")}
	vecs := vectors(2, schema.DefaultEmbeddingDimension)

	tests := []struct {
		name      string
		insertErr error
		upsertErr error
		want      Status
	}{
		{"both succeed", nil, nil, StatusSuccess},
		{"vector fails", nil, errors.New("vector store down"), StatusPartial},
		{"relational fails", errors.New("database is locked"), nil, StatusPartial},
		{"both fail", errors.New("database is locked"), errors.New("vector store down"), StatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, records, store := newMockLoader(t, Config{})
			records.On("Insert", mock.Anything, schema.TableDatoMacroeconomico, mock.Anything).Return(1, tt.insertErr).Once()
			store.On("Upsert", mock.Anything, schema.IndexDatoMacroeconomico, mock.Anything).Return(tt.upsertErr).Once()

			res := l.LoadByCategory(ctx, schema.CategoryMacroeconomic, structured, vecs)
			assert.Equal(t, tt.want, res.Status)
			require.NotNil(t, res.Relational)
			require.NotNil(t, res.Vector)
			assert.Equal(t, tt.insertErr == nil, res.Relational.Success)
			assert.Equal(t, tt.upsertErr == nil, res.Vector.Success)

			switch tt.want {
			case StatusSuccess:
				assert.NoError(t, res.Err)
			case StatusPartial:
				assert.ErrorIs(t, res.Err, errs.ErrPartialWrite)
				assert.ErrorIs(t, res.Err, errs.ErrConnectionFailure)
			case StatusFailed:
				assert.Error(t, res.Err)
				assert.Contains(t, res.Message, "database is locked")
				assert.Contains(t, res.Message, "vector store down")
			}
		})
	}
}

func TestLoadByCategoryOmittedWrites(t *testing.T) {
	ctx := context.Background()

	l, records, store := newMockLoader(t, Config{})
	records.On("Insert", mock.Anything, schema.TableMovimientoDiarioBolsa, mock.Anything).Return(1, nil).Once()

	mov := structuring.Record{
		"fecha_operacion":    "2024-06-03",
		"cantidad_operacion": 10,
		"precio_operacion":   "1.000",
		"id_instrumento":     "BBVA01",
		"id_emisor":          "BBVA",
		"id_moneda":          "PYG",
	}
	res := l.LoadByCategory(ctx, schema.CategoryMarket, []structuring.Record{mov}, nil)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Nil(t, res.Vector)

	// market没有向量索引，附带向量时该写入失败
	res = l.LoadByCategory(ctx, schema.CategoryMarket, nil, vectors(1, schema.DefaultEmbeddingDimension))
	assert.Equal(t, StatusFailed, res.Status)
	store.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything)

	res = l.LoadByCategory(ctx, schema.CategoryNews, nil, nil)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, "nothing to load", res.Message)
}

func TestLoadByCategoryRecoversPanic(t *testing.T) {
	l, records, _ := newMockLoader(t, Config{})
	records.On("Insert", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { panic("driver exploded") }).
		Return(0, nil).Once()

	res := l.LoadByCategory(context.Background(), schema.CategoryMacroeconomic, []structuring.Record{macroRecord("IPC")}, nil)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Contains(t, res.Message, "driver exploded")
}

func TestLoadByCategoryCanceled(t *testing.T) {
	l, _, _ := newMockLoader(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := l.LoadByCategory(ctx, schema.CategoryMacroeconomic, []structuring.Record{macroRecord("IPC")}, nil)
	assert.Equal(t, StatusError, res.Status)
	assert.ErrorIs(t, res.Err, context.Canceled)
}

func TestSimulationSkipsWrites(t *testing.T) {
	l, _, _ := newMockLoader(t, Config{Simulation: true})
	assert.True(t, l.Simulation())

	res := l.LoadByCategory(context.Background(), schema.CategoryMacroeconomic,
		[]structuring.Record{macroRecord("IPC")}, vectors(2, schema.DefaultEmbeddingDimension))
	assert.Equal(t, StatusSuccess, res.Status)
	assert.True(t, res.Relational.Simulated)
	assert.True(t, res.Vector.Simulated)
	assert.Equal(t, 2, res.Vector.Count)

	// 模拟模式下校验照常进行
	bad := macroRecord("IPC")
	delete(bad, "fuente_dato")
	assert.False(t, l.LoadStructured(context.Background(), schema.TableDatoMacroeconomico, bad).Success)
}

func TestTestConnections(t *testing.T) {
	l, records, store := newMockLoader(t, Config{})
	records.On("Ping", mock.Anything).Return(nil)
	store.On("Ping", mock.Anything).Return(errors.New("connection refused"))

	status := l.TestConnections(context.Background())
	assert.True(t, status.Relational)
	assert.False(t, status.Vector)
	assert.False(t, status.AllConnected)
	assert.Equal(t, "connection refused", status.Errors["vector"])

	unconfigured := NewLoader(nil, nil, Config{}, quietLogger()).TestConnections(context.Background())
	assert.False(t, unconfigured.AllConnected)
	assert.Len(t, unconfigured.Errors, 2)
}

// TestLoadEndToEnd 使用sqlite内存库和内存向量索引
func TestLoadEndToEnd(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(&database.Config{
		Type: "sqlite",
		DSN:  fmt.Sprintf("file:loading_%d?mode=memory", time.Now().UnixNano()),
	}, quietLogger())
	require.NoError(t, err)

	set, err := vectordb.NewIndexSet(vectordb.Config{Type: "memory", DistanceType: vectordb.Cosine}, schema.Indexes.All())
	require.NoError(t, err)
	defer set.Close()

	l := NewLoader(repository.NewRecordRepositoryWithDB(db), set, Config{BatchSize: 10}, quietLogger())

	res := l.LoadByCategory(ctx, schema.CategoryMacroeconomic,
		[]structuring.Record{macroRecord("IPC"), macroRecord("PIB")},
		vectors(3, schema.DefaultEmbeddingDimension))
	require.Equal(t, StatusSuccess, res.Status, res.Message)

	stats := l.Statistics(ctx)
	assert.True(t, stats.Connections.AllConnected)
	assert.Equal(t, int64(2), stats.Tables[schema.TableDatoMacroeconomico])
	assert.Equal(t, int64(0), stats.Tables[schema.TableEmisores])
	assert.Equal(t, 3, stats.Indexes[schema.IndexDatoMacroeconomico].Count)
	assert.Equal(t, schema.DefaultEmbeddingDimension, stats.Indexes[schema.IndexDatoMacroeconomico].Dimension)
}
