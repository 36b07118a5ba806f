package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/doctor-appointments/internal/appointment"
	"github.com/hackgods/doctor-appointments/internal/auth"
	"github.com/hackgods/doctor-appointments/internal/config"
	"github.com/hackgods/doctor-appointments/internal/db"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	BookingRatio float64
	StatusRatio  float64
	CancelRatio  float64
	ReadRatio    float64
	DoctorLimit  int
	PatientLimit int
	RaceSlots    int
	RaceAttempts int
	PostgresDSN  string
	JWTSecret    string
	TimesPerDay  []string
	DaysAhead    int
}

type simDoctor struct {
	ID    uuid.UUID
	Token string
}

type simPatient struct {
	ID    uuid.UUID
	Token string
}

type booked struct {
	ID        uuid.UUID
	DoctorIdx int
	Patient   int
}

type DataPool struct {
	Doctors      []simDoctor
	Patients     []simPatient
	mu           sync.RWMutex
	appointments []booked
}

func (dp *DataPool) AddAppointment(b booked) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, b)
}

func (dp *DataPool) GetRandomAppointment(rng *rand.Rand) (booked, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return booked{}, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Rejected  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

// Record buckets a response: 2xx success, 409 conflict, other 4xx rejected
// by a business rule, everything else an error.
func (om *OperationMetrics) Record(latency time.Duration, status int) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case status >= 200 && status < 300:
		atomic.AddInt64(&om.Success, 1)
	case status == http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	case status >= 400 && status < 500:
		atomic.AddInt64(&om.Rejected, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)

	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIdx(len(latencies), 50)]
	p95 = latencies[percentileIdx(len(latencies), 95)]

	return avg, min, max, p50, p95
}

func percentileIdx(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Race        OperationMetrics
	Booking     OperationMetrics
	SetStatus   OperationMetrics
	Cancel      OperationMetrics
	ReadByID    OperationMetrics
	ListPatient OperationMetrics
	ListDoctor  OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Printf("config: duration=%s workers=%d booking=%.2f status=%.2f cancel=%.2f read=%.2f",
		cfg.Duration, cfg.Workers, cfg.BookingRatio, cfg.StatusRatio, cfg.CancelRatio, cfg.ReadRatio)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}

	log.Printf("loaded: %d doctors, %d patients", len(dataPool.Doctors), len(dataPool.Patients))

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	raceOK := sim.RunRace()
	sim.Run()
	sim.PrintReport()

	violations, err := countDoubleBookings(context.Background(), pgPool)
	if err != nil {
		log.Fatalf("verify ledger: %v", err)
	}
	fmt.Printf("Double-booked slots in ledger: %d\n", violations)

	if !raceOK || violations > 0 {
		os.Exit(1)
	}
}

func loadConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load base config: %v", err)
	}

	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:"+baseCfg.HTTPPort),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.4),
		StatusRatio:  getFloat("SIM_STATUS_RATIO", 0.2),
		CancelRatio:  getFloat("SIM_CANCEL_RATIO", 0.1),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.3),
		DoctorLimit:  getInt("SIM_DOCTOR_LIMIT", 10),
		PatientLimit: getInt("SIM_PATIENT_LIMIT", 400),
		RaceSlots:    getInt("SIM_RACE_SLOTS", 20),
		RaceAttempts: getInt("SIM_RACE_ATTEMPTS", 25),
		PostgresDSN:  baseCfg.PostgresDSN,
		JWTSecret:    baseCfg.JWTSecret,
		TimesPerDay:  []string{"09:00", "09:30", "10:00", "10:30", "11:00", "14:00", "14:30", "15:00"},
		DaysAhead:    getInt("SIM_DAYS_AHEAD", 5),
	}

	// Normalize ratios
	total := cfg.BookingRatio + cfg.StatusRatio + cfg.CancelRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.StatusRatio /= total
		cfg.CancelRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.DaysAhead <= 0 {
		return fmt.Errorf("SIM_DAYS_AHEAD must be > 0")
	}
	return nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{}

	rows, err := pool.Query(ctx, `
		SELECT id, user_id FROM doctors ORDER BY created_at LIMIT $1
	`, cfg.DoctorLimit)
	if err != nil {
		return nil, fmt.Errorf("load doctors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, userID uuid.UUID
		if err := rows.Scan(&id, &userID); err != nil {
			return nil, err
		}
		tok, err := auth.IssueToken(cfg.JWTSecret, userID, appointment.RoleDoctor, time.Hour)
		if err != nil {
			return nil, err
		}
		dataPool.Doctors = append(dataPool.Doctors, simDoctor{ID: id, Token: tok})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = pool.Query(ctx, `
		SELECT id FROM users WHERE role = 'patient' LIMIT $1
	`, cfg.PatientLimit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		tok, err := auth.IssueToken(cfg.JWTSecret, id, appointment.RolePatient, time.Hour)
		if err != nil {
			return nil, err
		}
		dataPool.Patients = append(dataPool.Patients, simPatient{ID: id, Token: tok})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(dataPool.Doctors) == 0 {
		return nil, fmt.Errorf("no doctors loaded, run cmd/seed first")
	}
	if len(dataPool.Patients) == 0 {
		return nil, fmt.Errorf("no patients loaded, run cmd/seed first")
	}

	return dataPool, nil
}

// RunRace fires RaceAttempts concurrent bookings at each of RaceSlots fresh
// slots and checks that exactly one booking per slot wins.
func (s *Simulator) RunRace() bool {
	log.Printf("race phase: %d slots x %d concurrent bookings", s.config.RaceSlots, s.config.RaceAttempts)

	ctx := context.Background()
	// far enough out that the load phase never touches these dates
	base := time.Now().UTC().AddDate(5, 0, gofakeit.Number(0, 3000))
	ok := true

	for i := 0; i < s.config.RaceSlots; i++ {
		doctorIdx := i % len(s.pool.Doctors)
		date := base.AddDate(0, 0, i).Format(appointment.DateLayout)
		slotTime := s.config.TimesPerDay[i%len(s.config.TimesPerDay)]

		var wins int64
		var wg sync.WaitGroup
		for a := 0; a < s.config.RaceAttempts; a++ {
			wg.Add(1)
			go func(a int) {
				defer wg.Done()
				patientIdx := (i*s.config.RaceAttempts + a) % len(s.pool.Patients)
				status, id := s.book(ctx, &s.metrics.Race, doctorIdx, patientIdx, date, slotTime)
				if status == http.StatusCreated {
					atomic.AddInt64(&wins, 1)
					s.pool.AddAppointment(booked{ID: id, DoctorIdx: doctorIdx, Patient: patientIdx})
				}
			}(a)
		}
		wg.Wait()

		if wins != 1 {
			ok = false
			log.Printf("race slot %s %s doctor=%s: %d winners", date, slotTime, s.pool.Doctors[doctorIdx].ID, wins)
		}
	}

	log.Printf("race phase complete, ok=%t", ok)
	return ok
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	log.Printf("starting simulation for %s with %d workers", s.config.Duration, s.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	log.Println("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	bookingCut := s.config.BookingRatio
	statusCut := bookingCut + s.config.StatusRatio
	cancelCut := statusCut + s.config.CancelRatio

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < bookingCut:
				s.doBooking(ctx, rng)
			case r < statusCut:
				s.doSetStatus(ctx, rng)
			case r < cancelCut:
				s.doCancel(ctx, rng)
			default:
				switch rng.Intn(3) {
				case 0:
					s.doReadByID(ctx, rng)
				case 1:
					s.doListPatient(ctx, rng)
				case 2:
					s.doListDoctor(ctx, rng)
				}
			}
		}
	}
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	doctorIdx := rng.Intn(len(s.pool.Doctors))
	patientIdx := rng.Intn(len(s.pool.Patients))
	date := time.Now().UTC().AddDate(0, 0, 1+rng.Intn(s.config.DaysAhead)).Format(appointment.DateLayout)
	slotTime := s.config.TimesPerDay[rng.Intn(len(s.config.TimesPerDay))]

	status, id := s.book(ctx, &s.metrics.Booking, doctorIdx, patientIdx, date, slotTime)
	if status == http.StatusCreated {
		s.pool.AddAppointment(booked{ID: id, DoctorIdx: doctorIdx, Patient: patientIdx})
	}
}

func (s *Simulator) book(ctx context.Context, om *OperationMetrics, doctorIdx, patientIdx int, date, slotTime string) (int, uuid.UUID) {
	mode := "offline_visit"
	if gofakeit.Bool() {
		mode = "online"
	}

	reqBody := map[string]string{
		"doctorId":           s.pool.Doctors[doctorIdx].ID.String(),
		"patientPhoneNumber": gofakeit.Phone(),
		"appointmentDate":    date,
		"appointmentTime":    slotTime,
		"reason":             gofakeit.Sentence(6),
		"mode":               mode,
	}

	var apptResp struct {
		ID uuid.UUID `json:"id"`
	}
	status := s.call(ctx, om, http.MethodPost, "/appointments", s.pool.Patients[patientIdx].Token, reqBody, &apptResp)
	return status, apptResp.ID
}

func (s *Simulator) doSetStatus(ctx context.Context, rng *rand.Rand) {
	b, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	targets := []string{"approved", "rejected", "completed"}
	body := map[string]string{
		"status":      targets[rng.Intn(len(targets))],
		"meetingLink": "https://meet.example.com/" + uuid.NewString()[:8],
	}

	s.call(ctx, &s.metrics.SetStatus, http.MethodPatch, "/appointments/"+b.ID.String()+"/status",
		s.pool.Doctors[b.DoctorIdx].Token, body, nil)
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	b, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	s.call(ctx, &s.metrics.Cancel, http.MethodPatch, "/appointments/"+b.ID.String()+"/cancel",
		s.pool.Patients[b.Patient].Token, nil, nil)
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	b, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	s.call(ctx, &s.metrics.ReadByID, http.MethodGet, "/appointments/"+b.ID.String(),
		s.pool.Patients[b.Patient].Token, nil, nil)
}

func (s *Simulator) doListPatient(ctx context.Context, rng *rand.Rand) {
	p := s.pool.Patients[rng.Intn(len(s.pool.Patients))]
	s.call(ctx, &s.metrics.ListPatient, http.MethodGet, "/appointments/my", p.Token, nil, nil)
}

func (s *Simulator) doListDoctor(ctx context.Context, rng *rand.Rand) {
	d := s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]
	filters := []string{"", "pending", "approved"}
	path := "/appointments/doctor"
	if f := filters[rng.Intn(len(filters))]; f != "" {
		path += "?status=" + f
	}
	s.call(ctx, &s.metrics.ListDoctor, http.MethodGet, path, d.Token, nil, nil)
}

// call performs one request and records it. Transport failures and context
// cancellation at the end of the run are recorded as status 0.
func (s *Simulator) call(ctx context.Context, om *OperationMetrics, method, path, token string, body, out interface{}) int {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, reader)
	if err != nil {
		return 0
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(start)

	if err != nil {
		if ctx.Err() == nil {
			om.Record(latency, 0)
		}
		return 0
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		_ = json.NewDecoder(resp.Body).Decode(out)
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}

	om.Record(latency, resp.StatusCode)
	return resp.StatusCode
}

func countDoubleBookings(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	var n int
	err := pool.QueryRow(ctx, `
		SELECT count(*) FROM (
			SELECT doctor_id, appointment_date, appointment_time
			FROM appointments
			WHERE status IN ('pending', 'approved')
			GROUP BY doctor_id, appointment_date, appointment_time
			HAVING count(*) > 1
		) dup
	`).Scan(&n)
	return n, err
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Race bookings", &s.metrics.Race)
	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Set status", &s.metrics.SetStatus)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("Read by ID", &s.metrics.ReadByID)
	printOperationReport("List mine (patient)", &s.metrics.ListPatient)
	printOperationReport("List mine (doctor)", &s.metrics.ListDoctor)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	rejected := atomic.LoadInt64(&om.Rejected)
	errs := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	pct := func(n int64) float64 { return float64(n) / float64(total) * 100 }

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, pct(success))
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, pct(conflict))
	}
	if rejected > 0 {
		fmt.Printf("  Rejected: %d (%.1f%%)\n", rejected, pct(rejected))
	}
	if errs > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", errs, pct(errs))
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

// Helper functions

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func repeat(s string, n int) string {
	return strings.Repeat(s, n)
}
