package resource

import (
	"context"
	"fmt"

	"github.com/afex/hystrix-go/hystrix"

	"github.com/restgen/restgen/schema/query"
)

// hystrixStorage wraps a storage handler calls into hystrix commands so a
// failing backend opens the circuit instead of piling up requests.
type hystrixStorage struct {
	findCmd string
	storage Storer
}

func newHystrixStorage(name string, s Storer, c hystrix.CommandConfig) hystrixStorage {
	h := hystrixStorage{
		findCmd: fmt.Sprintf("%s.Find", name),
		storage: s,
	}
	hystrix.ConfigureCommand(h.findCmd, c)
	return h
}

func (h hystrixStorage) Find(ctx context.Context, q *query.Query) (list *ItemList, err error) {
	out := make(chan *ItemList, 1)
	errs := hystrix.Go(h.findCmd, func() error {
		list, err := h.storage.Find(ctx, q)
		if err == nil {
			out <- list
		}
		return err
	}, nil)
	select {
	case list = <-out:
	case err = <-errs:
	}
	return
}
