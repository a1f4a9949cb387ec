package mongotools

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/nikmy/txprop/pkg/errors"
)

// Set builds a $set update of the given fields, in order.
func Set(fields ...bson.E) bson.D {
	return bson.D{{Key: "$set", Value: bson.D(fields)}}
}

func Field(key string, value any) bson.E {
	return bson.E{Key: key, Value: value}
}

func All() bson.D {
	return bson.D{}
}

func ByID(id string) bson.D {
	return bson.D{{Key: "_id", Value: id}}
}

// Collect decodes every document of the cursor as T and keeps what
// pick accepts, converted to R. The cursor is closed afterwards.
func Collect[T, R any](ctx context.Context, c *mongo.Cursor, pick func(T) (R, bool)) (collected []R, err error) {
	defer func() {
		err = errors.Join(err, errors.WrapFail(c.Close(ctx), "close cursor"))
	}()

	for c.Next(ctx) {
		var item T
		err = c.Decode(&item)
		if err != nil {
			return nil, errors.WrapFail(err, "decode item")
		}

		if r, ok := pick(item); ok {
			collected = append(collected, r)
		}
	}

	return collected, c.Err()
}
