// Package mongo implements persistence.Sink on top of
// go.mongodb.org/mongo-driver/v2, grounded on the teacher's
// features/run/mongo/store.go collection-per-concern layout.
package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/resonantlabs/negotiator/session"
	"github.com/resonantlabs/negotiator/toolerrors"
)

// record is the document shape written for one completed negotiation.
type record struct {
	NegotiationID     string           `bson:"negotiation_id"`
	UserID            string           `bson:"user_id"`
	RawIntent         string           `bson:"raw_intent"`
	FormulatedText    string           `bson:"formulated_text"`
	Scope             string           `bson:"scope"`
	PlanOutput        string           `bson:"plan_output"`
	ParticipantIDs    []string         `bson:"participant_ids"`
	CoordinatorRounds int              `bson:"coordinator_rounds"`
	SubNegotiationIDs []string         `bson:"sub_negotiation_ids"`
	CreatedAt         time.Time        `bson:"created_at"`
	CompletedAt       time.Time        `bson:"completed_at"`
}

// Sink persists completed negotiations to a single Mongo collection.
type Sink struct {
	collection *mongo.Collection
}

// New constructs a Sink writing to the given collection.
func New(collection *mongo.Collection) *Sink {
	return &Sink{collection: collection}
}

func (s *Sink) SaveCompleted(ctx context.Context, sess *session.Session) error {
	ids := make([]string, 0, len(sess.Participants))
	for _, p := range sess.Participants {
		ids = append(ids, p.AgentID)
	}
	completedAt := time.Now()
	if t, ok := sess.Trace.CompletedAt(); ok {
		completedAt = t
	}

	doc := record{
		NegotiationID:     sess.NegotiationID,
		UserID:            sess.Demand.UserID,
		RawIntent:         sess.Demand.RawIntent,
		FormulatedText:    sess.Demand.FormulatedText,
		Scope:             sess.Demand.Scope,
		PlanOutput:        sess.PlanOutput,
		ParticipantIDs:    ids,
		CoordinatorRounds: sess.CoordinatorRounds,
		SubNegotiationIDs: sess.SubNegotiationIDs,
		CreatedAt:         sess.CreatedAt,
		CompletedAt:       completedAt,
	}

	filter := bson.M{"negotiation_id": sess.NegotiationID}
	opts := mongo.ReplaceOne().SetUpsert(true)
	_, err := s.collection.ReplaceOne(ctx, filter, doc, opts)
	if err != nil {
		return toolerrors.NewAdapterError("persist completed negotiation failed", toolerrors.Context{NegotiationID: sess.NegotiationID}, err)
	}
	return nil
}
