package storage

import (
	"database/sql"
	"fmt"
	"time"

	"ms-booking/internal/config"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"

	_ "github.com/lib/pq"
)

type PostgreSQLStore struct {
	db  *sql.DB
	log *logger.Logger
}

// NewPostgreSQLStoreWithDB creates a payment store on an existing database
// connection. Used when the store shares the pool with the booking gateway.
func NewPostgreSQLStoreWithDB(db *sql.DB, log *logger.Logger) (*PostgreSQLStore, error) {
	store := &PostgreSQLStore{
		db:  db,
		log: log,
	}

	if err := store.initTables(); err != nil {
		log.Error("DATABASE", "Failed to initialize payment tables: "+err.Error())
		return nil, fmt.Errorf("failed to initialize payment tables: %w", err)
	}

	log.LogDatabase("SUCCESS", "payments", "Payment storage ready on existing connection")
	return store, nil
}

func NewPostgreSQLStore(cfg config.DatabaseConfig, log *logger.Logger) (*PostgreSQLStore, error) {
	log.LogDatabase("CONNECT", "payments", fmt.Sprintf("Connecting to PostgreSQL at %s:%s", cfg.Host, cfg.Port))

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Error("DATABASE", "Failed to open PostgreSQL connection: "+err.Error())
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MaxLifetime)

	if err := db.Ping(); err != nil {
		log.Error("DATABASE", "Failed to ping PostgreSQL: "+err.Error())
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgreSQLStore{
		db:  db,
		log: log,
	}

	if err := store.initTables(); err != nil {
		log.Error("DATABASE", "Failed to initialize tables: "+err.Error())
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	log.LogDatabase("SUCCESS", "payments", "PostgreSQL connection established and tables initialized")
	return store, nil
}

func (s *PostgreSQLStore) initTables() error {
	s.log.LogDatabase("MIGRATE", "payments", "Creating payments table if not exists")

	paymentsQuery := `
    CREATE TABLE IF NOT EXISTS payments (
        payment_id VARCHAR(64) PRIMARY KEY,
        booking_id VARCHAR(36) NOT NULL,
        amount DECIMAL(10,2) NOT NULL,
        currency VARCHAR(10) NOT NULL,
        payment_type VARCHAR(20) NOT NULL,
        status VARCHAR(20) NOT NULL,
        stripe_checkout_url VARCHAR(500),
        session_id VARCHAR(255),
        payment_intent_id VARCHAR(255),
        description VARCHAR(500),
        paid_at TIMESTAMP,
        due_date TIMESTAMP,
        created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
    );
    `

	if _, err := s.db.Exec(paymentsQuery); err != nil {
		return fmt.Errorf("failed to create payments table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_payments_booking_id ON payments(booking_id);",
		"CREATE INDEX IF NOT EXISTS idx_payments_status ON payments(status);",
		"CREATE INDEX IF NOT EXISTS idx_payments_session_id ON payments(session_id);",
		"CREATE INDEX IF NOT EXISTS idx_payments_intent_id ON payments(payment_intent_id);",
	}

	for _, indexQuery := range indexes {
		if _, err := s.db.Exec(indexQuery); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	s.log.LogDatabase("SUCCESS", "payments", "Payment tables and indexes ready")
	return nil
}

const paymentColumns = `payment_id, booking_id, amount, currency, payment_type, status,
    stripe_checkout_url, session_id, payment_intent_id, description, paid_at, due_date, created_at`

func (s *PostgreSQLStore) scanPayment(row interface{ Scan(...any) error }) (*models.Payment, error) {
	p := &models.Payment{}
	var checkoutURL, sessionID, intentID, description sql.NullString
	var paidAt, dueDate sql.NullTime

	err := row.Scan(
		&p.PaymentID, &p.BookingID, &p.Amount, &p.Currency, &p.PaymentType, &p.Status,
		&checkoutURL, &sessionID, &intentID, &description, &paidAt, &dueDate, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.CheckoutURL = checkoutURL.String
	p.SessionID = sessionID.String
	p.IntentID = intentID.String
	p.Description = description.String
	if paidAt.Valid {
		p.PaidAt = paidAt.Time
	}
	if dueDate.Valid {
		p.DueDate = dueDate.Time
	}
	return p, nil
}

// SavePayment saves a payment to the database
func (s *PostgreSQLStore) SavePayment(payment *models.Payment) error {
	s.log.LogDatabase("INSERT", "payments", fmt.Sprintf("Saving payment %s", payment.PaymentID))

	query := `
    INSERT INTO payments (
        payment_id, booking_id, amount, currency, payment_type, status,
        stripe_checkout_url, session_id, payment_intent_id, description, paid_at, due_date, created_at
    ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
    `

	_, err := s.db.Exec(query,
		payment.PaymentID, payment.BookingID, payment.Amount, payment.Currency,
		payment.PaymentType, payment.Status,
		nullString(payment.CheckoutURL), nullString(payment.SessionID), nullString(payment.IntentID),
		nullString(payment.Description), nullTime(payment.PaidAt), nullTime(payment.DueDate), payment.CreatedAt,
	)

	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to save payment %s: %s", payment.PaymentID, err.Error()))
		return fmt.Errorf("failed to save payment: %w", err)
	}

	s.log.LogDatabase("SUCCESS", "payments", fmt.Sprintf("Payment %s saved successfully", payment.PaymentID))
	return nil
}

// GetPayment retrieves a payment by ID
func (s *PostgreSQLStore) GetPayment(id string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE payment_id = $1`

	payment, err := s.scanPayment(s.db.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			s.log.LogDatabase("NOT_FOUND", "payments", fmt.Sprintf("Payment %s not found", id))
			return nil, ErrNotFound
		}
		s.log.Error("DATABASE", fmt.Sprintf("Failed to get payment %s: %s", id, err.Error()))
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return payment, nil
}

// UpdatePayment updates a payment in the database
func (s *PostgreSQLStore) UpdatePayment(payment *models.Payment) error {
	s.log.LogDatabase("UPDATE", "payments", fmt.Sprintf("Updating payment %s", payment.PaymentID))

	query := `
    UPDATE payments SET
        status = $1, stripe_checkout_url = $2, session_id = $3, payment_intent_id = $4,
        description = $5, paid_at = $6, due_date = $7
    WHERE payment_id = $8
    `

	_, err := s.db.Exec(query,
		payment.Status, nullString(payment.CheckoutURL), nullString(payment.SessionID),
		nullString(payment.IntentID), nullString(payment.Description),
		nullTime(payment.PaidAt), nullTime(payment.DueDate),
		payment.PaymentID,
	)

	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to update payment %s: %s", payment.PaymentID, err.Error()))
		return fmt.Errorf("failed to update payment: %w", err)
	}

	s.log.LogDatabase("SUCCESS", "payments", fmt.Sprintf("Payment %s updated successfully", payment.PaymentID))
	return nil
}

// ListByBooking retrieves all payments for a booking, newest first.
func (s *PostgreSQLStore) ListByBooking(bookingID string) ([]*models.Payment, error) {
	query := `
    SELECT ` + paymentColumns + `
    FROM payments
    WHERE booking_id = $1
    ORDER BY created_at DESC
    `

	rows, err := s.db.Query(query, bookingID)
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to list payments: %s", err.Error()))
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		payment, err := s.scanPayment(rows)
		if err != nil {
			s.log.Error("DATABASE", fmt.Sprintf("Failed to scan payment row: %s", err.Error()))
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, payment)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return payments, nil
}

// GetLatestPendingByBooking returns the most recent pending payment for a
// booking. Webhook reconciliation marks this row succeeded when the
// checkout session completes.
func (s *PostgreSQLStore) GetLatestPendingByBooking(bookingID string) (*models.Payment, error) {
	query := `
    SELECT ` + paymentColumns + `
    FROM payments
    WHERE booking_id = $1 AND status = $2
    ORDER BY created_at DESC
    LIMIT 1
    `

	payment, err := s.scanPayment(s.db.QueryRow(query, bookingID, models.StatusPending))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get pending payment: %w", err)
	}
	return payment, nil
}

// GetPaymentBySessionID retrieves a payment by its Stripe checkout session.
func (s *PostgreSQLStore) GetPaymentBySessionID(sessionID string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE session_id = $1`

	payment, err := s.scanPayment(s.db.QueryRow(query, sessionID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get payment by session: %w", err)
	}
	return payment, nil
}

// GetPaymentByIntentID retrieves a payment by its Stripe payment intent.
// The intent id is only recorded once the payment settles, so pending rows
// never match here.
func (s *PostgreSQLStore) GetPaymentByIntentID(intentID string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE payment_intent_id = $1`

	payment, err := s.scanPayment(s.db.QueryRow(query, intentID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get payment by intent: %w", err)
	}
	return payment, nil
}

func (s *PostgreSQLStore) Close() error {
	s.log.LogDatabase("CLOSE", "payments", "Closing PostgreSQL connection")
	return s.db.Close()
}

func (s *PostgreSQLStore) HealthCheck() error {
	return s.db.Ping()
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func nullTime(v time.Time) sql.NullTime {
	return sql.NullTime{Time: v, Valid: !v.IsZero()}
}
