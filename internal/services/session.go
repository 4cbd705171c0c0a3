package services

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/sam-thetutor/herlock/internal/config"
	"github.com/sam-thetutor/herlock/internal/models"
	"github.com/sam-thetutor/herlock/pkg/logger"
)

var (
	ErrInvalidToken    = errors.New("invalid session token")
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionInactive = errors.New("session has been revoked")
	ErrDatabaseError   = errors.New("database error")
)

// sessionClaims binds a JWT to a stored session record
type sessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// SessionService manages dashboard sessions: a MongoDB record per login
// plus a signed bearer token handed to the client. The ledger's own
// principal token never leaves the server; it lives on the session
// record and is re-attached on every proxied call.
type SessionService struct {
	client     *mongo.Client
	db         *mongo.Database
	collection *mongo.Collection
	config     *config.MongoDBConfig
	auth       *config.AuthConfig
}

// NewSessionService connects to the session store and prepares indexes
func NewSessionService(cfg *config.MongoDBConfig, authCfg *config.AuthConfig) (*SessionService, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	clientOptions := options.Client().ApplyURI(cfg.URI)
	clientOptions.SetMaxPoolSize(cfg.MaxPoolSize)
	clientOptions.SetConnectTimeout(cfg.ConnectTimeout)
	clientOptions.SetRetryWrites(true)
	clientOptions.SetRetryReads(true)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	db := client.Database(cfg.Database)
	collection := db.Collection(cfg.SessionCollection)

	indexModel := mongo.IndexModel{
		Keys: bson.D{{Key: "principal", Value: 1}, {Key: "active", Value: 1}},
	}
	if _, err := collection.Indexes().CreateOne(ctx, indexModel); err != nil {
		// an existing index is fine; anything else is worth a look
		logger.GetLogger().Warn("Session index creation failed", zap.Error(err))
	}

	return &SessionService{
		client:     client,
		db:         db,
		collection: collection,
		config:     cfg,
		auth:       authCfg,
	}, nil
}

// CreateSession stores a new session record and returns it together
// with the signed bearer token for the dashboard
func (s *SessionService) CreateSession(ctx context.Context, principal, ledgerToken string) (*models.Session, string, error) {
	now := time.Now()
	session := &models.Session{
		ID:          uuid.New().String(),
		Principal:   principal,
		LedgerToken: ledgerToken,
		Active:      true,
		CreatedAt:   now,
		LastSeen:    now,
	}

	if _, err := s.collection.InsertOne(ctx, session); err != nil {
		return nil, "", ErrDatabaseError
	}

	claims := sessionClaims{
		SessionID: session.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principal,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.auth.TokenTTL)),
			Issuer:    "herlock-gateway",
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.auth.JWTSecret))
	if err != nil {
		return nil, "", err
	}
	return session, token, nil
}

// ValidateToken verifies a bearer token and loads its live session
func (s *SessionService) ValidateToken(tokenString string) (*models.Session, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(s.auth.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var session models.Session
	if err := s.collection.FindOne(ctx, bson.M{"_id": claims.SessionID}).Decode(&session); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrSessionNotFound
		}
		return nil, ErrDatabaseError
	}
	if !session.Active {
		return nil, ErrSessionInactive
	}

	go s.touchSession(session.ID)

	return &session, nil
}

// RevokeSession marks a session inactive; the bearer token stops
// working on the next request
func (s *SessionService) RevokeSession(ctx context.Context, sessionID string) error {
	result, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": sessionID},
		bson.M{"$set": bson.M{"active": false}},
	)
	if err != nil {
		return ErrDatabaseError
	}
	if result.MatchedCount == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// CleanupStale removes sessions not seen within the inactivity limit
func (s *SessionService) CleanupStale(ctx context.Context, inactivityLimit time.Duration) (int64, error) {
	cutoff := time.Now().Add(-inactivityLimit)
	result, err := s.collection.DeleteMany(ctx, bson.M{
		"$or": []bson.M{
			{"active": false},
			{"last_seen": bson.M{"$lt": cutoff}},
		},
	})
	if err != nil {
		return 0, ErrDatabaseError
	}
	return result.DeletedCount, nil
}

// ActiveSessionIDs lists the ids of every session still marked active,
// so the sweep can evict live contexts whose records were removed
func (s *SessionService) ActiveSessionIDs(ctx context.Context) (map[string]struct{}, error) {
	cursor, err := s.collection.Find(ctx, bson.M{"active": true},
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, ErrDatabaseError
	}
	defer cursor.Close(ctx)

	ids := make(map[string]struct{})
	for cursor.Next(ctx) {
		var doc struct {
			ID string `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, ErrDatabaseError
		}
		ids[doc.ID] = struct{}{}
	}
	if err := cursor.Err(); err != nil {
		return nil, ErrDatabaseError
	}
	return ids, nil
}

// touchSession updates the last-seen timestamp in the background
func (s *SessionService) touchSession(sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.collection.UpdateOne(ctx,
		bson.M{"_id": sessionID},
		bson.M{"$set": bson.M{"last_seen": time.Now()}},
	)
}

// Close disconnects from the session store
func (s *SessionService) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
