package plugin

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/Aman-CERP/protoscope/internal/protocol"
)

// fakePlugin is a configurable protocol.Plugin for tests.
type fakePlugin struct {
	meta      protocol.Metadata
	schema    protocol.Schema
	createErr error
	nilInst   bool

	// instance behaviour
	connectFails  int
	connectErr    error
	pollErr       error
	disconnectErr error
	blockPoll     bool

	mu        sync.Mutex
	instances []*fakeInstance
}

func newFake(id string) *fakePlugin {
	return &fakePlugin{
		meta: protocol.Metadata{ID: id, Name: "Fake " + id, Version: "1.2", APIVersion: protocol.APIVersion},
		schema: protocol.Schema{
			{Name: "address", Type: protocol.FieldString, Required: true},
		},
	}
}

func (p *fakePlugin) Metadata() protocol.Metadata   { return p.meta }
func (p *fakePlugin) ConfigSchema() protocol.Schema { return p.schema }

func (p *fakePlugin) Validate(cfg protocol.Config) error {
	return protocol.ValidateConfig(p.schema, cfg)
}

func (p *fakePlugin) Create(_ protocol.Config) (protocol.Instance, error) {
	if p.createErr != nil {
		return nil, p.createErr
	}
	if p.nilInst {
		return nil, nil
	}
	inst := &fakeInstance{plugin: p}
	p.mu.Lock()
	p.instances = append(p.instances, inst)
	p.mu.Unlock()
	return inst, nil
}

func (p *fakePlugin) last() *fakeInstance {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.instances[len(p.instances)-1]
}

type fakeInstance struct {
	plugin *fakePlugin

	connects    atomic.Int32
	polls       atomic.Int32
	disconnects atomic.Int32
}

var errRefused = errors.New("connection refused")

func (i *fakeInstance) Connect(ctx context.Context) error {
	n := i.connects.Add(1)
	if i.plugin.connectErr != nil {
		return i.plugin.connectErr
	}
	if int(n) <= i.plugin.connectFails {
		return errRefused
	}
	return ctx.Err()
}

func (i *fakeInstance) Poll(ctx context.Context) (protocol.Sample, error) {
	if i.plugin.blockPoll {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if i.plugin.pollErr != nil {
		return nil, i.plugin.pollErr
	}
	n := i.polls.Add(1)
	return protocol.Sample{"n": int(n), "ok": true}, nil
}

func (i *fakeInstance) Disconnect(_ context.Context) error {
	i.disconnects.Add(1)
	return i.plugin.disconnectErr
}
