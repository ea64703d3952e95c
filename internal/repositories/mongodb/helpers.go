package mongodb

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func projectionWithoutMessages() *options.FindOneOptions {
	return options.FindOne().SetProjection(bson.M{"messages": 0})
}
