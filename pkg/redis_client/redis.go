package redis_client

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Connect opens and pings a redis connection. Callers pass connection details
// from the explicit configuration value rather than reading the environment
// here.
func Connect(address string, password string, database int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       database,
	})

	statusCmd := client.Ping(context.Background())
	if err := statusCmd.Err(); err != nil {
		return nil, err
	}

	return client, nil
}
