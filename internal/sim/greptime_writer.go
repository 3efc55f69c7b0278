package sim

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"
)

// Default table names.
const (
	DefaultSampleTable  = "der_samples"
	DefaultSummaryTable = "der_runs"
)

// greptimeClient is the subset of the ingester client the writer uses.
type greptimeClient interface {
	Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error)
}

// GreptimeDBWriter writes samples to GreptimeDB via the ingester client.
type GreptimeDBWriter struct {
	client       greptimeClient
	sampleTable  string
	summaryTable string
	log          *slog.Logger
}

// NewGreptimeDBWriter connects to endpoint (host or host:port). Empty table
// names select the defaults.
func NewGreptimeDBWriter(endpoint, database, sampleTable, summaryTable string) (*GreptimeDBWriter, error) {
	host, port, err := splitEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	cfg := greptime.NewConfig(host).WithDatabase(database)
	if port > 0 {
		cfg = cfg.WithPort(port)
	}
	client, err := greptime.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	if sampleTable == "" {
		sampleTable = DefaultSampleTable
	}
	if summaryTable == "" {
		summaryTable = DefaultSummaryTable
	}
	return &GreptimeDBWriter{
		client:       client,
		sampleTable:  sampleTable,
		summaryTable: summaryTable,
		log:          slog.Default().With("component", "greptimedb"),
	}, nil
}

func splitEndpoint(endpoint string) (string, int, error) {
	if endpoint == "" {
		return "", 0, fmt.Errorf("greptimedb endpoint is empty")
	}
	host, p, err := net.SplitHostPort(endpoint)
	if err != nil {
		return endpoint, 0, nil
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		return "", 0, fmt.Errorf("greptimedb endpoint %q: invalid port", endpoint)
	}
	return host, port, nil
}

func (w *GreptimeDBWriter) logger() *slog.Logger {
	if w.log == nil {
		return slog.Default()
	}
	return w.log
}

// Write inserts a single row.
func (w *GreptimeDBWriter) Write(row SampleRow) error {
	return w.WriteBatch([]SampleRow{row})
}

func (w *GreptimeDBWriter) sampleSchema() (*table.Table, error) {
	tbl, err := table.New(w.sampleTable)
	if err != nil {
		return nil, err
	}
	cols := []struct {
		name string
		tag  bool
		typ  types.ColumnType
	}{
		{"run_id", true, types.STRING},
		{"mode", true, types.STRING},
		{"step", false, types.INT64},
		{"loadmult", false, types.FLOAT64},
		{"va_pu", false, types.FLOAT64},
		{"vb_pu", false, types.FLOAT64},
		{"vc_pu", false, types.FLOAT64},
		{"vm_pu", false, types.FLOAT64},
		{"p_pu", false, types.FLOAT64},
		{"q_pu", false, types.FLOAT64},
		{"pf", false, types.FLOAT64},
		{"ia_pu", false, types.FLOAT64},
		{"ib_pu", false, types.FLOAT64},
		{"ic_pu", false, types.FLOAT64},
		{"status", false, types.STRING},
	}
	for _, c := range cols {
		if c.tag {
			err = tbl.AddTagColumn(c.name, c.typ)
		} else {
			err = tbl.AddFieldColumn(c.name, c.typ)
		}
		if err != nil {
			return nil, err
		}
	}
	if err := tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND); err != nil {
		return nil, err
	}
	return tbl, nil
}

// WriteBatch inserts multiple rows.
func (w *GreptimeDBWriter) WriteBatch(rows []SampleRow) error {
	if len(rows) == 0 {
		return nil
	}
	tbl, err := w.sampleSchema()
	if err != nil {
		return err
	}
	for _, r := range rows {
		mode := string(r.Mode)
		if mode == "" {
			mode = "without_der"
		}
		if err := tbl.AddRow(
			r.RunID, mode, int64(r.Index), r.LoadMult,
			r.Va, r.Vb, r.Vc, r.Vm,
			r.P, r.Q, r.PF(),
			r.I[0], r.I[1], r.I[2],
			r.Status, r.Timestamp,
		); err != nil {
			return err
		}
	}
	if _, err := w.client.Write(context.Background(), tbl); err != nil {
		w.logger().Error("write failed", "table", w.sampleTable, "err", err)
		return err
	}
	w.logger().Debug("wrote rows", "table", w.sampleTable, "rows", len(rows))
	return nil
}

// WriteSummary inserts the run summary.
func (w *GreptimeDBWriter) WriteSummary(s RunSummary) error {
	tbl, err := table.New(w.summaryTable)
	if err != nil {
		return err
	}
	for _, add := range []error{
		tbl.AddTagColumn("run_id", types.STRING),
		tbl.AddTagColumn("mode", types.STRING),
		tbl.AddFieldColumn("samples", types.INT64),
		tbl.AddFieldColumn("solves", types.INT64),
		tbl.AddFieldColumn("min_v_pu", types.FLOAT64),
		tbl.AddFieldColumn("max_v_pu", types.FLOAT64),
		tbl.AddFieldColumn("trips", types.INT64),
		tbl.AddFieldColumn("elapsed_ms", types.INT64),
		tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND),
	} {
		if add != nil {
			return add
		}
	}
	mode := string(s.Mode)
	if mode == "" {
		mode = "without_der"
	}
	if err := tbl.AddRow(s.RunID, mode, int64(s.Samples), int64(s.Solves), s.MinV, s.MaxV,
		int64(s.Trips), s.Elapsed.Milliseconds(), s.Timestamp); err != nil {
		return err
	}
	if _, err := w.client.Write(context.Background(), tbl); err != nil {
		w.logger().Error("write failed", "table", w.summaryTable, "err", err)
		return err
	}
	return nil
}
