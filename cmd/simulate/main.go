package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sehatclinic/booking-api/internal/api"
	"github.com/sehatclinic/booking-api/internal/config"
	"github.com/sehatclinic/booking-api/internal/db"
)

// simulate hammers the booking API with concurrent patients to observe
// contention behavior: for each round it picks one (doctor, date, time)
// slot and has every worker try to book it. Exactly one 201 and N-1
// slot_taken conflicts per round means the ledger's unique index is
// doing its job.

type metrics struct {
	total     int64
	success   int64
	conflict  int64
	errored   int64
	mu        sync.Mutex
	latencies []time.Duration
}

func (m *metrics) record(latency time.Duration, status int) {
	atomic.AddInt64(&m.total, 1)
	switch {
	case status == http.StatusCreated:
		atomic.AddInt64(&m.success, 1)
	case status == http.StatusConflict:
		atomic.AddInt64(&m.conflict, 1)
	default:
		atomic.AddInt64(&m.errored, 1)
	}

	m.mu.Lock()
	m.latencies = append(m.latencies, latency)
	m.mu.Unlock()
}

func (m *metrics) summary() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.latencies) == 0 {
		return "no requests"
	}
	sort.Slice(m.latencies, func(i, j int) bool { return m.latencies[i] < m.latencies[j] })
	p50 := m.latencies[len(m.latencies)/2]
	p95 := m.latencies[len(m.latencies)*95/100]

	return fmt.Sprintf("total=%d success=%d conflict=%d error=%d p50=%s p95=%s",
		m.total, m.success, m.conflict, m.errored, p50, p95)
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	baseURL := flag.String("base-url", "http://127.0.0.1:8080", "API base URL")
	workers := flag.Int("workers", 20, "concurrent workers per round")
	rounds := flag.Int("rounds", 10, "number of contested slots to fight over")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	cancel()
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	doctors, err := loadIDs(pool, "SELECT id FROM doctors LIMIT 200")
	if err != nil {
		log.Fatalf("load doctors: %v", err)
	}
	patients, err := loadIDs(pool, "SELECT id FROM patients LIMIT 2000")
	if err != nil {
		log.Fatalf("load patients: %v", err)
	}
	if len(doctors) == 0 || len(patients) == 0 {
		log.Fatal("no doctors or patients; run cmd/seed first")
	}
	log.Printf("loaded %d doctors, %d patients", len(doctors), len(patients))

	client := &http.Client{Timeout: 10 * time.Second}
	m := &metrics{}

	for round := 0; round < *rounds; round++ {
		doctorID := doctors[rand.Intn(len(doctors))]
		date := time.Now().In(cfg.Location).AddDate(0, 0, 1+rand.Intn(6)).Format("2006-01-02")

		slot, ok := firstOpenSlot(client, *baseURL, doctorID, date)
		if !ok {
			log.Printf("round %d: doctor %s has no open slot on %s, skipping", round, doctorID, date)
			continue
		}

		log.Printf("round %d: %d workers fighting for doctor=%s %s %s", round, *workers, doctorID, date, slot)

		var wg sync.WaitGroup
		for w := 0; w < *workers; w++ {
			patientID := patients[rand.Intn(len(patients))]
			wg.Add(1)
			go func(pid uuid.UUID) {
				defer wg.Done()
				book(client, *baseURL, cfg.JWTSecret, m, pid, doctorID, date, slot)
			}(patientID)
		}
		wg.Wait()
	}

	log.Printf("done: %s", m.summary())
}

func loadIDs(pool *pgxpool.Pool, query string) ([]uuid.UUID, error) {
	rows, err := pool.Query(context.Background(), query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func firstOpenSlot(client *http.Client, baseURL string, doctorID uuid.UUID, date string) (string, bool) {
	resp, err := client.Get(fmt.Sprintf("%s/doctors/%s/slots?date=%s", baseURL, doctorID, date))
	if err != nil {
		log.Printf("fetch slots: %v", err)
		return "", false
	}
	defer resp.Body.Close()

	var body struct {
		Slots []struct {
			Time      string `json:"time"`
			Available bool   `json:"available"`
		} `json:"slots"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", false
	}
	for _, s := range body.Slots {
		if s.Available {
			return s.Time, true
		}
	}
	return "", false
}

func book(client *http.Client, baseURL, secret string, m *metrics, patientID, doctorID uuid.UUID, date, slot string) {
	token, err := api.GenerateToken(secret, patientID, api.RolePatient, time.Hour)
	if err != nil {
		log.Printf("sign token: %v", err)
		return
	}

	payload, _ := json.Marshal(map[string]any{
		"doctor_id": doctorID.String(),
		"date":      date,
		"time":      slot,
	})

	req, err := http.NewRequest(http.MethodPost, baseURL+"/appointments", bytes.NewReader(payload))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		m.record(time.Since(start), 0)
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	m.record(time.Since(start), resp.StatusCode)
}
