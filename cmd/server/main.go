// Command server exposes the engine over both a hand-rolled gRPC service
// (grpc.ServiceDesc with a JSON wire codec, no protobuf code generation)
// and a sibling HTTP/JSON endpoint, in the style of the teacher's own
// cmd/server. Every HTTP request and gRPC call is tagged with a fresh
// uuid.UUID session id used for log correlation across both transports.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"

	"github.com/relicdb/relic/internal/catalog"
	"github.com/relicdb/relic/internal/config"
	"github.com/relicdb/relic/internal/engine"
	"github.com/relicdb/relic/internal/scheduler"
)

var flagConfig = flag.String("config", "", "path to a YAML config file (optional, uses built-in defaults if empty)")

type execRequest struct {
	SQL string `json:"sql"`
}

type execResponse struct {
	Success      bool   `json:"success"`
	Error        string `json:"error,omitempty"`
	RowsAffected int    `json:"rows_affected,omitempty"`
	Duration     string `json:"duration"`
}

type queryRequest struct {
	SQL string `json:"sql"`
}

type queryResponse struct {
	SQL      string           `json:"sql"`
	Columns  []string         `json:"columns,omitempty"`
	Rows     []map[string]any `json:"rows,omitempty"`
	Error    string           `json:"error,omitempty"`
	Duration string           `json:"duration"`
	Count    int              `json:"count"`
}

// jsonCodec is the gRPC wire codec: plain JSON in place of protobuf, so the
// service descriptor below needs no generated .pb.go code.
type jsonCodec struct{}

func (jsonCodec) Name() string                      { return "json" }
func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// RelicServer is the hand-rolled gRPC service interface this server
// implements — no .proto file, matching the teacher's own server.
type RelicServer interface {
	Exec(context.Context, *execRequest) (*execResponse, error)
	Query(context.Context, *queryRequest) (*queryResponse, error)
}

func registerRelicServer(s *grpc.Server, srv RelicServer) {
	s.RegisterService(&grpc.ServiceDesc{
		ServiceName: "relic.Relic",
		HandlerType: (*RelicServer)(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: "Exec", Handler: relicExecHandler},
			{MethodName: "Query", Handler: relicQueryHandler},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "relic",
	}, srv)
}

func relicExecHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(execRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RelicServer).Exec(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/relic.Relic/Exec"}
	handler := func(ctx context.Context, req any) (any, error) { return srv.(RelicServer).Exec(ctx, req.(*execRequest)) }
	return interceptor(ctx, in, info, handler)
}

func relicQueryHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(queryRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RelicServer).Query(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/relic.Relic/Query"}
	handler := func(ctx context.Context, req any) (any, error) { return srv.(RelicServer).Query(ctx, req.(*queryRequest)) }
	return interceptor(ctx, in, info, handler)
}

// sessionUnaryInterceptor tags every gRPC call with a fresh session id for
// log correlation, the gRPC-side counterpart of withSession below.
func sessionUnaryInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	sid := uuid.New()
	log.Printf("session=%s grpc=%s", sid, info.FullMethod)
	return handler(ctx, req)
}

type server struct {
	eng *engine.Engine
}

func (s *server) Exec(ctx context.Context, req *execRequest) (*execResponse, error) {
	start := time.Now()
	res, err := s.eng.Exec(req.SQL)
	if err != nil {
		return &execResponse{Error: err.Error(), Duration: time.Since(start).String()}, nil
	}
	return &execResponse{Success: true, RowsAffected: res.RowsAffected, Duration: time.Since(start).String()}, nil
}

func (s *server) Query(ctx context.Context, req *queryRequest) (*queryResponse, error) {
	start := time.Now()
	res, err := s.eng.Query(req.SQL)
	if err != nil {
		return &queryResponse{SQL: req.SQL, Error: err.Error(), Duration: time.Since(start).String()}, nil
	}
	rows := make([]map[string]any, len(res.Rows))
	for i, row := range res.Rows {
		m := make(map[string]any, len(res.Columns))
		for _, c := range res.Columns {
			v, _ := row.Get(c)
			m[c] = v.String()
		}
		rows[i] = m
	}
	return &queryResponse{
		SQL:      req.SQL,
		Columns:  res.Columns,
		Rows:     rows,
		Duration: time.Since(start).String(),
		Count:    len(rows),
	}, nil
}

func (s *server) handleExec(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req execRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	resp, _ := s.Exec(r.Context(), &req)
	writeJSON(w, resp)
}

func (s *server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	resp, _ := s.Query(r.Context(), &req)
	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// withSession wraps an HTTP handler, tagging each request with a fresh
// session id logged alongside it for correlation across both transports.
func withSession(name string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid := uuid.New()
		log.Printf("session=%s http=%s", sid, name)
		h(w, r)
	}
}

func main() {
	flag.Parse()

	cfg := config.Default()
	if *flagConfig != "" {
		var err error
		cfg, err = config.Load(*flagConfig)
		if err != nil {
			log.Fatalf("config error: %v", err)
		}
	}

	db, err := catalog.Open(cfg.DataDir)
	if err != nil {
		log.Fatalf("open error: %v", err)
	}
	defer db.Close()

	if cfg.Checkpoint != "" {
		ck, err := scheduler.NewCheckpointer(db, cfg.Checkpoint)
		if err != nil {
			log.Fatalf("scheduler error: %v", err)
		}
		ck.Start()
		defer ck.Stop()
	}

	srv := &server{eng: engine.NewEngine(db)}

	encoding.RegisterCodec(jsonCodec{})

	if cfg.Listen.GRPC != "" {
		go func() {
			lis, err := net.Listen("tcp", cfg.Listen.GRPC)
			if err != nil {
				log.Printf("gRPC listen error: %v", err)
				return
			}
			gs := grpc.NewServer(grpc.UnaryInterceptor(sessionUnaryInterceptor))
			registerRelicServer(gs, srv)
			log.Printf("gRPC listening on %s", cfg.Listen.GRPC)
			if err := gs.Serve(lis); err != nil {
				log.Printf("gRPC serve error: %v", err)
			}
		}()
	}

	if cfg.Listen.HTTP != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/api/exec", withSession("exec", srv.handleExec))
		mux.HandleFunc("/api/query", withSession("query", srv.handleQuery))
		log.Printf("HTTP listening on %s", cfg.Listen.HTTP)
		if err := http.ListenAndServe(cfg.Listen.HTTP, mux); err != nil {
			log.Fatalf("HTTP serve error: %v", err)
		}
		return
	}
	select {}
}
