package ui

import (
	"fmt"
	"sync/atomic"

	"github.com/brogergvhs/showscrape/internal/util"
)

// Stats accumulates crawl counters across workers.
type Stats struct {
	Pages   atomic.Int64
	Items   atomic.Int64
	Details atomic.Int64
	Failed  atomic.Int64
	Bytes   atomic.Int64
}

func (s *Stats) String() string {
	return fmt.Sprintf("%s, %s, %s, %s failed, %s written",
		util.Plural(s.Pages.Load(), "page"),
		util.Plural(s.Items.Load(), "item"),
		util.Plural(s.Details.Load(), "detail"),
		fmt.Sprint(s.Failed.Load()),
		util.Human(s.Bytes.Load()))
}
