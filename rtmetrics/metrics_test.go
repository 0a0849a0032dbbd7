package rtmetrics_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/danfuzz/lactoserv-sub004/eventchain"
	"github.com/danfuzz/lactoserv-sub004/rtevent"
	"github.com/danfuzz/lactoserv-sub004/rtmetrics"
)

func TestCollectorTalliesConnectionEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := rtmetrics.NewCollector(reg)

	source := eventchain.NewEventSource[rtevent.Event](4)
	sink := c.Sink(source.Kickoff())
	go func() { _ = sink.Run(context.Background()) }()

	if _, err := source.Emit(rtevent.Event{Kind: rtevent.KindConnectionOpened, Endpoint: "web"}); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if _, err := source.Emit(rtevent.Event{Kind: rtevent.KindConnectionOpened, Endpoint: "web"}); err != nil {
		t.Fatalf("emit: %v", err)
	}
	sink.Stop()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	var found *dto.MetricFamily
	for _, f := range families {
		if f.GetName() == "lactoservd_connections_opened_total" {
			found = f
		}
	}
	if found == nil {
		t.Fatalf("expected connections_opened_total to be registered")
	}
}
