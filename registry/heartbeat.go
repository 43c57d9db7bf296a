package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"TeethAnnotationServer/logger"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

const TimeOutSeconds = 5

type RegisterRequest struct {
	Id        string `json:"id"`
	IP        string `json:"ip"`
	Port      int    `json:"port"`
	ModelID   string `json:"modelId"`
	TimeStamp int64  `json:"timestamp"`
}

type RegisterResponse struct {
	Id      string `json:"id"`
	Success bool   `json:"success"`
}

type RegServerConfig struct {
	Port int
	Addr string
}

func (reg *RegServerConfig) URL() string {
	return fmt.Sprintf("http://%s:%d/api/register", reg.Addr, reg.Port)
}

type Heartbeat struct {
	cfg      RegServerConfig
	client   *resty.Client
	id       string
	ip       string
	port     int
	modelID  string
	interval time.Duration
}

func NewHeartbeat(cfg RegServerConfig, ip string, port int, modelID string) *Heartbeat {
	return &Heartbeat{
		cfg:      cfg,
		client:   resty.New().SetTimeout(TimeOutSeconds * time.Second),
		id:       uuid.NewString(),
		ip:       ip,
		port:     port,
		modelID:  modelID,
		interval: TimeOutSeconds * time.Second,
	}
}

func (h *Heartbeat) ID() string {
	return h.id
}

// SendOnce registers this instance a single time.
func (h *Heartbeat) SendOnce(ctx context.Context) error {
	var respBody RegisterResponse
	resp, err := h.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(RegisterRequest{
			Id:        h.id,
			IP:        h.ip,
			Port:      h.port,
			ModelID:   h.modelID,
			TimeStamp: time.Now().Unix(),
		}).
		SetResult(&respBody).
		Post(h.cfg.URL())
	if err != nil {
		return fmt.Errorf("register request: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("registry returned %s: %s", resp.Status(), resp.String())
	}
	if !respBody.Success {
		return fmt.Errorf("registry rejected instance %s", h.id)
	}
	return nil
}

// Run sends a heartbeat immediately and then every interval until ctx is done.
// Failures are logged only.
func (h *Heartbeat) Run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	send := func() {
		if err := h.SendOnce(ctx); err != nil && ctx.Err() == nil {
			logger.S().Errorw("heartbeat failed", "instance", h.id, "registry", h.cfg.URL(), "error", err)
		}
	}
	send()
	for {
		select {
		case <-ctx.Done():
			logger.S().Infof("heartbeat for instance %s stopped", h.id)
			return
		case <-ticker.C:
			send()
		}
	}
}
