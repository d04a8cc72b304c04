package dashboard

import (
	"encoding/json"
	"log"
	"time"

	"github.com/svcdeps/svcdeps/internal/extract"
)

// ExtractCompleteData describes a finished extraction run
type ExtractCompleteData struct {
	Service  string        `json:"service"`
	Found    int           `json:"found"`
	Inserted int           `json:"inserted"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// Handler turns extraction results into dashboard messages.
type Handler struct {
	server *Server
	logger *log.Logger
}

// NewHandler creates a handler broadcasting through server
func NewHandler(server *Server, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{server: server, logger: logger}
}

// OnExtract broadcasts one fact_found message per extracted fact followed
// by an extract_complete summary. res may be nil when err is set.
func (h *Handler) OnExtract(res *extract.Result, elapsed time.Duration, err error) {
	data := ExtractCompleteData{Duration: elapsed}
	if res != nil {
		data.Service = res.Service
		data.Found = len(res.Facts)
		data.Inserted = res.Inserted
	}
	if err != nil {
		data.Error = err.Error()
	}

	if err == nil && res != nil {
		for _, f := range res.Facts {
			h.broadcast(MessageTypeFactFound, f)
		}
	}

	h.logger.Printf("Extract complete: service=%s found=%d inserted=%d", data.Service, data.Found, data.Inserted)
	h.broadcast(MessageTypeExtractComplete, data)
}

func (h *Handler) broadcast(typ MessageType, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		h.logger.Printf("Failed to marshal %s data: %v", typ, err)
		return
	}
	h.server.Broadcast(Message{
		Type:      typ,
		Timestamp: time.Now(),
		Data:      payload,
	})
}

