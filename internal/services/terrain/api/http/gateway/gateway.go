// Package gateway serves terrain generation as JSON over HTTP for rendering
// clients that do not speak gRPC.
package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	terrainv1 "github.com/louisbranch/hexterrain/api/terrain/v1"
	platformgrpc "github.com/louisbranch/hexterrain/internal/platform/grpc"
	"github.com/louisbranch/hexterrain/internal/platform/logging"
)

// TerrainPath is the generation route.
const TerrainPath = "/v1/terrain"

// ErrorResponse is the JSON body of failed requests.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type handler struct {
	client terrainv1.TerrainGenerationServiceClient
	log    *logrus.Entry
}

// NewRouter routes gateway requests to client.
func NewRouter(client terrainv1.TerrainGenerationServiceClient, log *logrus.Entry) *mux.Router {
	if log == nil {
		log = logging.Discard()
	}
	h := &handler{client: client, log: log}
	router := mux.NewRouter()
	router.HandleFunc(TerrainPath, h.generate).Methods(http.MethodGet)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)
	return router
}

func (h *handler) generate(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	total, err := strconv.ParseInt(strings.TrimSpace(query.Get("total_land_hexagons")), 10, 32)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Code: "INVALID_QUERY", Message: "total_land_hexagons must be an integer"})
		return
	}
	persist := false
	if raw := strings.TrimSpace(query.Get("persist")); raw != "" {
		persist, err = strconv.ParseBool(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Code: "INVALID_QUERY", Message: "persist must be a boolean"})
			return
		}
	}

	ctx := platformgrpc.WithLocale(r.Context(), r.Header.Get("Accept-Language"))
	resp, err := h.client.GenerateTerrain(ctx, &terrainv1.GenerateTerrainRequest{
		TotalLandHexagons: int32(total),
		Persist:           persist,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) writeError(w http.ResponseWriter, err error) {
	st := status.Convert(err)
	body := ErrorResponse{Code: st.Code().String(), Message: st.Message()}
	for _, detail := range st.Details() {
		switch d := detail.(type) {
		case *errdetails.ErrorInfo:
			body.Code = d.Reason
		case *errdetails.LocalizedMessage:
			body.Message = d.Message
		}
	}
	code := httpStatus(st.Code())
	if code >= http.StatusInternalServerError {
		h.log.WithError(err).Error("terrain gateway request failed")
	}
	writeJSON(w, code, body)
}

func httpStatus(code codes.Code) int {
	switch code {
	case codes.OK:
		return http.StatusOK
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.NotFound:
		return http.StatusNotFound
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.Canceled:
		return 499
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
