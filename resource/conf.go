package resource

import (
	"github.com/afex/hystrix-go/hystrix"

	"github.com/restgen/restgen/schema/query"
)

// Conf defines the configuration for a given resource.
type Conf struct {
	// Query configures the compilation of list requests (page size,
	// default filter mode, credential field protection...).
	Query query.Conf
	// CircuitBreaker, when set, wraps the storage handler calls in a hystrix
	// command named after the resource path (i.e.: users.posts.Find) using
	// this command configuration.
	CircuitBreaker *hystrix.CommandConfig
}

// DefaultConf defines a configuration with some sensible default parameters:
// pages of 30 items, OR filter mode and protection of User.password.
var DefaultConf = Conf{
	Query: query.DefaultConf,
}
