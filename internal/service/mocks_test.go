package service_test

import (
	"context"
	"net"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/civiclabs/ballotbox/internal/domain"
	"github.com/civiclabs/ballotbox/internal/repo/postgres"
	"github.com/civiclabs/ballotbox/pkg/config"
)

// ---------- Mocks ----------

func testConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:      "test-secret",
			AccessTokenTTL: 30 * time.Minute,
		},
		Election: config.ElectionConfig{
			OTPTTL:        10 * time.Minute,
			OTPCastWindow: 5 * time.Minute,
			VoterNoPrefix: "VOTER",
		},
	}
}

type mockUserRepo struct {
	nextID int64
	users  map[int64]*domain.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{nextID: 1, users: make(map[int64]*domain.User)}
}

func (m *mockUserRepo) Create(_ context.Context, role, email, passwordHash, name string) (*domain.User, error) {
	user := &domain.User{
		ID:           m.nextID,
		Role:         role,
		Email:        email,
		PasswordHash: passwordHash,
		Name:         name,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	m.users[user.ID] = user
	m.nextID++
	return user, nil
}

func (m *mockUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) FindByID(_ context.Context, id int64) (*domain.User, error) {
	return m.users[id], nil
}

func (m *mockUserRepo) UpdatePassword(_ context.Context, id int64, passwordHash string) error {
	u, ok := m.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

type mockVoterRepo struct {
	mu         sync.Mutex
	users      *mockUserRepo
	nextID     int64
	voters     map[int64]*domain.Voter
	voterNos   map[string]bool
	approveErr []error // consumed front-first by Approve, for collision tests
}

func newMockVoterRepo(users *mockUserRepo) *mockVoterRepo {
	return &mockVoterRepo{
		users:    users,
		nextID:   1,
		voters:   make(map[int64]*domain.Voter),
		voterNos: make(map[string]bool),
	}
}

func (m *mockVoterRepo) CreateWithUser(ctx context.Context, req *domain.RegisterVoterRequest, passwordHash string) (*domain.Voter, *domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users.users {
		if u.Email == req.Email {
			return nil, nil, domain.ErrEmailTaken
		}
	}
	for _, v := range m.voters {
		if v.NationalID == req.NationalID {
			return nil, nil, domain.ErrNationalIDTaken
		}
	}

	user, _ := m.users.Create(ctx, domain.RoleVoter, req.Email, passwordHash, req.Name)
	dob, _ := req.BirthDate()
	voter := &domain.Voter{
		ID:           m.nextID,
		UserID:       user.ID,
		NationalID:   req.NationalID,
		DateOfBirth:  dob,
		GuardianName: req.GuardianName,
		Phone:        req.Phone,
		Occupation:   req.Occupation,
		Status:       domain.StatusPending,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	m.voters[voter.ID] = voter
	m.nextID++
	return voter, user, nil
}

// snapshot returns a copy, like a fresh row scan would.
func snapshot(v *domain.Voter) *domain.Voter {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func (m *mockVoterRepo) FindByID(_ context.Context, id int64) (*domain.Voter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return snapshot(m.voters[id]), nil
}

func (m *mockVoterRepo) FindByUserID(_ context.Context, userID int64) (*domain.Voter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.voters {
		if v.UserID == userID {
			return snapshot(v), nil
		}
	}
	return nil, nil
}

func (m *mockVoterRepo) FindByVoterNo(_ context.Context, voterNo string) (*domain.Voter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.voters {
		if v.VoterNo != nil && *v.VoterNo == voterNo {
			return snapshot(v), nil
		}
	}
	return nil, nil
}

func (m *mockVoterRepo) List(_ context.Context, status *domain.ApprovalStatus, limit, offset int) ([]domain.VoterListing, error) {
	var out []domain.VoterListing
	for _, v := range m.voters {
		if status != nil && v.Status != *status {
			continue
		}
		out = append(out, domain.VoterListing{
			ID:         v.ID,
			NationalID: v.NationalID,
			Status:     v.Status,
			VoterNo:    v.VoterNo,
			HasVoted:   v.HasVoted,
		})
	}
	return out, nil
}

func (m *mockVoterRepo) Approve(_ context.Context, id int64, voterNo string) (*domain.Voter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.approveErr) > 0 {
		err := m.approveErr[0]
		m.approveErr = m.approveErr[1:]
		if err != nil {
			return nil, err
		}
	}
	v, ok := m.voters[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if v.Status != domain.StatusPending {
		return nil, domain.ErrInvalidTransition
	}
	if m.voterNos[voterNo] {
		return nil, postgres.ErrVoterNoTaken
	}
	m.voterNos[voterNo] = true
	v.Status = domain.StatusApproved
	v.VoterNo = &voterNo
	return v, nil
}

func (m *mockVoterRepo) Reject(_ context.Context, id int64, reason string) (*domain.Voter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.voters[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if v.Status != domain.StatusPending {
		return nil, domain.ErrInvalidTransition
	}
	v.Status = domain.StatusRejected
	v.RejectReason = reason
	return v, nil
}

func (m *mockVoterRepo) CountByStatus(_ context.Context) (map[domain.ApprovalStatus]int64, error) {
	counts := make(map[domain.ApprovalStatus]int64)
	for _, v := range m.voters {
		counts[v.Status]++
	}
	return counts, nil
}

type mockCandidateRepo struct {
	users      *mockUserRepo
	nextID     int64
	candidates map[int64]*domain.Candidate
	names      map[int64]string // candidate ID -> display name
}

func newMockCandidateRepo(users *mockUserRepo) *mockCandidateRepo {
	return &mockCandidateRepo{
		users:      users,
		nextID:     1,
		candidates: make(map[int64]*domain.Candidate),
		names:      make(map[int64]string),
	}
}

func (m *mockCandidateRepo) CreateWithUser(ctx context.Context, req *domain.RegisterCandidateRequest, passwordHash string) (*domain.Candidate, *domain.User, error) {
	for _, u := range m.users.users {
		if u.Email == req.Email {
			return nil, nil, domain.ErrEmailTaken
		}
	}

	user, _ := m.users.Create(ctx, domain.RoleCandidate, req.Email, passwordHash, req.Name)
	candidate := &domain.Candidate{
		ID:        m.nextID,
		UserID:    user.ID,
		Party:     req.Party,
		Status:    domain.StatusPending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	m.candidates[candidate.ID] = candidate
	m.names[candidate.ID] = req.Name
	m.nextID++
	return candidate, user, nil
}

func (m *mockCandidateRepo) CreateNomination(_ context.Context, userID int64, party string) (*domain.Candidate, error) {
	for _, c := range m.candidates {
		if c.UserID == userID && c.Status != domain.StatusRejected {
			return nil, domain.ErrInvalidTransition
		}
	}
	candidate := &domain.Candidate{
		ID:        m.nextID,
		UserID:    userID,
		Party:     party,
		Status:    domain.StatusPending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	m.candidates[candidate.ID] = candidate
	m.nextID++
	return candidate, nil
}

func (m *mockCandidateRepo) CancelNomination(_ context.Context, userID int64) error {
	var newest *domain.Candidate
	for _, c := range m.candidates {
		if c.UserID == userID && (newest == nil || c.ID > newest.ID) {
			newest = c
		}
	}
	if newest == nil {
		return domain.ErrNotFound
	}
	for id, c := range m.candidates {
		if c.UserID == userID && c.Status == domain.StatusPending {
			delete(m.candidates, id)
			return nil
		}
	}
	return domain.ErrInvalidTransition
}

func (m *mockCandidateRepo) FindByID(_ context.Context, id int64) (*domain.Candidate, error) {
	return m.candidates[id], nil
}

func (m *mockCandidateRepo) FindByUserID(_ context.Context, userID int64) (*domain.Candidate, error) {
	var newest *domain.Candidate
	for _, c := range m.candidates {
		if c.UserID == userID && (newest == nil || c.ID > newest.ID) {
			newest = c
		}
	}
	return newest, nil
}

func (m *mockCandidateRepo) List(_ context.Context, status *domain.ApprovalStatus, limit, offset int) ([]domain.CandidateListing, error) {
	var out []domain.CandidateListing
	for _, c := range m.candidates {
		if status != nil && c.Status != *status {
			continue
		}
		out = append(out, domain.CandidateListing{
			ID:        c.ID,
			Name:      m.names[c.ID],
			Party:     c.Party,
			Status:    c.Status,
			VoteCount: c.VoteCount,
		})
	}
	return out, nil
}

func (m *mockCandidateRepo) Approve(_ context.Context, id int64) (*domain.Candidate, error) {
	c, ok := m.candidates[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if c.Status != domain.StatusPending {
		return nil, domain.ErrInvalidTransition
	}
	c.Status = domain.StatusApproved
	return c, nil
}

func (m *mockCandidateRepo) Reject(_ context.Context, id int64, reason string) (*domain.Candidate, error) {
	c, ok := m.candidates[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if c.Status != domain.StatusPending {
		return nil, domain.ErrInvalidTransition
	}
	c.Status = domain.StatusRejected
	c.RejectReason = reason
	return c, nil
}

func (m *mockCandidateRepo) Results(_ context.Context) ([]domain.CandidateResult, error) {
	var out []domain.CandidateResult
	for _, c := range m.candidates {
		if c.Status != domain.StatusApproved {
			continue
		}
		out = append(out, domain.CandidateResult{
			CandidateID: c.ID,
			Name:        m.names[c.ID],
			Party:       c.Party,
			Votes:       c.VoteCount,
		})
	}
	return out, nil
}

func (m *mockCandidateRepo) CountByStatus(_ context.Context) (map[domain.ApprovalStatus]int64, error) {
	counts := make(map[domain.ApprovalStatus]int64)
	for _, c := range m.candidates {
		counts[c.Status]++
	}
	return counts, nil
}

// mockVoteRepo mirrors the transactional cast: ledger insert, has_voted flip
// and tally increment move together under one lock.
type mockVoteRepo struct {
	mu         sync.Mutex
	voters     *mockVoterRepo
	candidates *mockCandidateRepo
	nextID     int64
	votes      map[int64]*domain.Vote // keyed by voter ID
}

func newMockVoteRepo(voters *mockVoterRepo, candidates *mockCandidateRepo) *mockVoteRepo {
	return &mockVoteRepo{
		voters:     voters,
		candidates: candidates,
		nextID:     1,
		votes:      make(map[int64]*domain.Vote),
	}
}

func (m *mockVoteRepo) CastVote(_ context.Context, voterID, candidateID int64) (*domain.Vote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.voters.mu.Lock()
	defer m.voters.mu.Unlock()

	voter, ok := m.voters.voters[voterID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if voter.Status != domain.StatusApproved {
		return nil, domain.ErrVoterNotApproved
	}
	if voter.HasVoted {
		return nil, domain.ErrDuplicateVote
	}
	if _, exists := m.votes[voterID]; exists {
		return nil, domain.ErrDuplicateVote
	}

	candidate, ok := m.candidates.candidates[candidateID]
	if !ok || candidate.Status != domain.StatusApproved {
		return nil, domain.ErrInvalidCandidate
	}

	now := time.Now()
	vote := &domain.Vote{
		ID:          m.nextID,
		VoterID:     voterID,
		CandidateID: candidateID,
		CastAt:      now,
	}
	m.nextID++
	m.votes[voterID] = vote
	voter.HasVoted = true
	voter.VotedAt = &now
	candidate.VoteCount++
	return vote, nil
}

func (m *mockVoteRepo) FindByVoterID(_ context.Context, voterID int64) (*domain.Vote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.votes[voterID], nil
}

func (m *mockVoteRepo) Count(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.votes)), nil
}

func (m *mockVoteRepo) ResetElection(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.voters.mu.Lock()
	defer m.voters.mu.Unlock()

	m.votes = make(map[int64]*domain.Vote)
	for _, v := range m.voters.voters {
		v.HasVoted = false
		v.VotedAt = nil
	}
	for _, c := range m.candidates.candidates {
		c.VoteCount = 0
	}
	return nil
}

type mockOTPRepo struct {
	mu     sync.Mutex
	nextID int64
	codes  map[int64][]*domain.OTPCode // keyed by voter ID, oldest first
}

func newMockOTPRepo() *mockOTPRepo {
	return &mockOTPRepo{nextID: 1, codes: make(map[int64][]*domain.OTPCode)}
}

func (m *mockOTPRepo) Create(_ context.Context, voterID int64, codeHash string, expiresAt time.Time) (*domain.OTPCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for _, c := range m.codes[voterID] {
		if !c.Consumed() && !c.Expired(now) {
			c.ExpiresAt = now // supersede
		}
	}

	code := &domain.OTPCode{
		ID:        m.nextID,
		VoterID:   voterID,
		CodeHash:  codeHash,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}
	m.nextID++
	m.codes[voterID] = append(m.codes[voterID], code)
	return code, nil
}

func (m *mockOTPRepo) Consume(_ context.Context, voterID int64, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	records := m.codes[voterID]
	if len(records) == 0 {
		return false, nil
	}
	newest := records[len(records)-1]
	if newest.Consumed() || newest.Expired(time.Now()) {
		return false, nil
	}
	if bcrypt.CompareHashAndPassword([]byte(newest.CodeHash), []byte(code)) != nil {
		return false, nil
	}
	now := time.Now()
	newest.ConsumedAt = &now
	return true, nil
}

func (m *mockOTPRepo) ConsumedWithin(_ context.Context, voterID int64, window time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-window)
	for _, c := range m.codes[voterID] {
		if c.ConsumedAt != nil && c.ConsumedAt.After(cutoff) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockOTPRepo) DeleteExpired(_ context.Context) (int64, error) {
	return 0, nil
}

type mockAuditRepo struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func (m *mockAuditRepo) Record(_ context.Context, voterID int64, action, details string, ip net.IP) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, domain.AuditEntry{
		ID:        int64(len(m.entries) + 1),
		VoterID:   voterID,
		Action:    action,
		Details:   details,
		IP:        ip,
		CreatedAt: time.Now(),
	})
	return nil
}

func (m *mockAuditRepo) List(_ context.Context, limit int) ([]domain.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.AuditEntry, len(m.entries))
	copy(out, m.entries)
	return out, nil
}

func (m *mockAuditRepo) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.entries {
		out = append(out, e.Action)
	}
	return out
}

func (m *mockAuditRepo) hasAction(action string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.Action == action {
			return true
		}
	}
	return false
}

type mockPublisher struct {
	mu       sync.Mutex
	subjects []string
}

func (m *mockPublisher) Publish(_ context.Context, subject string, _ interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subjects = append(m.subjects, subject)
	return nil
}

func (m *mockPublisher) Close() error { return nil }

func (m *mockPublisher) published(subject string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.subjects {
		if s == subject {
			return true
		}
	}
	return false
}

// ---------- Fixture ----------

// testEnv wires every service over the shared in-memory repos.
type testEnv struct {
	cfg        *config.Config
	users      *mockUserRepo
	voters     *mockVoterRepo
	candidates *mockCandidateRepo
	votes      *mockVoteRepo
	otps       *mockOTPRepo
	audit      *mockAuditRepo
	bus        *mockPublisher
	mail       *mockMailer
}

func newTestEnv() *testEnv {
	users := newMockUserRepo()
	voters := newMockVoterRepo(users)
	candidates := newMockCandidateRepo(users)
	return &testEnv{
		cfg:        testConfig(),
		users:      users,
		voters:     voters,
		candidates: candidates,
		votes:      newMockVoteRepo(voters, candidates),
		otps:       newMockOTPRepo(),
		audit:      &mockAuditRepo{},
		bus:        &mockPublisher{},
		mail:       &mockMailer{},
	}
}

// approvedVoter seeds one account with an approved voter profile and
// returns the user and voter IDs.
func (e *testEnv) approvedVoter(nationalID string) (userID, voterID int64) {
	ctx := context.Background()
	voter, user, _ := e.voters.CreateWithUser(ctx, &domain.RegisterVoterRequest{
		Email:       nationalID + "@example.com",
		NationalID:  nationalID,
		DateOfBirth: "1990-01-01",
	}, "hash")
	voterNo := "VOTER_20260829_" + nationalID[len(nationalID)-4:]
	e.voters.Approve(ctx, voter.ID, voterNo)
	return user.ID, voter.ID
}

// approvedCandidate seeds an approved nomination and returns its ID.
func (e *testEnv) approvedCandidate(name, party string) int64 {
	ctx := context.Background()
	candidate, _, _ := e.candidates.CreateWithUser(ctx, &domain.RegisterCandidateRequest{
		Email: name + "@example.com",
		Name:  name,
		Party: party,
	}, "hash")
	e.candidates.Approve(ctx, candidate.ID)
	return candidate.ID
}

type mockMailer struct {
	lastTo   string
	lastCode string
	sendErr  error
}

func (m *mockMailer) SendOTP(toEmail, toName, code string, ttl time.Duration) error {
	m.lastTo = toEmail
	m.lastCode = code
	return m.sendErr
}
