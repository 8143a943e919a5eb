package service

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// normalizeID converts an externally supplied key into the value used in
// store filters. A string that is valid ObjectID hex becomes an ObjectID so
// it matches Mongo's native keys; everything else passes through unchanged,
// which keeps non-ObjectID key schemes working and pushes "not found"
// decisions to the query. Never fails.
func normalizeID(id any) any {
	if s, ok := id.(string); ok {
		if oid, err := primitive.ObjectIDFromHex(s); err == nil {
			return oid
		}
	}
	return id
}
