package cli

import (
	stdcontext "context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Paintersrp/intthread/internal/config"
	"github.com/Paintersrp/intthread/internal/native"
	"github.com/Paintersrp/intthread/internal/registry"
	"github.com/Paintersrp/intthread/internal/thread"
	"github.com/Paintersrp/intthread/internal/worker"
)

// deployment is a registry populated from a manifest. The registry owns
// every controller.
type deployment struct {
	reg     *registry.Registry
	log     *logrus.Entry
	threads []*config.ThreadSpec
	workers map[registry.ID]thread.Worker
}

func (c *context) deploy(doc *config.Manifest) (*deployment, error) {
	dep := &deployment{
		reg:     registry.New(registry.WithLogger(c.log("registry"))),
		log:     c.log("deploy"),
		workers: make(map[registry.ID]thread.Worker, len(doc.Threads)),
	}

	for _, spec := range doc.Threads {
		if err := dep.add(c, spec); err != nil {
			_ = dep.teardown()
			return nil, fmt.Errorf("%s: %w", spec.Label(), err)
		}
	}
	dep.log.WithField("threads", len(dep.threads)).Debug("manifest deployed")
	return dep, nil
}

func (d *deployment) add(c *context, spec *config.ThreadSpec) error {
	w, err := worker.Build(spec.WorkerSpec())
	if err != nil {
		return err
	}
	backendName := spec.Backend
	if backendName == "" {
		backendName = c.env.Backend
	}
	backend, err := native.Lookup(backendName)
	if err != nil {
		return err
	}
	ctrl, err := thread.New(w,
		thread.WithName(spec.Label()),
		thread.WithBackend(backend),
		thread.WithLogger(c.log("thread")),
	)
	if err != nil {
		return err
	}
	id := spec.RegistryID()
	if err := d.reg.Adopt(id, ctrl); err != nil {
		return err
	}
	d.threads = append(d.threads, spec)
	d.workers[id] = w
	return nil
}

func (d *deployment) startAll() error {
	var errs []error
	for _, spec := range d.threads {
		if !spec.AutoStart() {
			continue
		}
		if err := d.reg.Start(spec.RegistryID()); err != nil {
			errs = append(errs, fmt.Errorf("start %s: %w", spec.Label(), err))
		}
	}
	return errors.Join(errs...)
}

// waitExited blocks until every started thread has exited on its own or ctx
// is done.
func (d *deployment) waitExited(ctx stdcontext.Context) error {
	for _, spec := range d.threads {
		ctrl, err := d.reg.Lookup(spec.RegistryID())
		if err != nil {
			return err
		}
		done := ctrl.Done()
		if done == nil {
			continue
		}
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (d *deployment) interruptAll() error {
	var errs []error
	for _, spec := range d.threads {
		err := d.reg.Interrupt(spec.RegistryID())
		if err != nil && !errors.Is(err, thread.ErrNotStarted) {
			errs = append(errs, fmt.Errorf("interrupt %s: %w", spec.Label(), err))
		}
	}
	return errors.Join(errs...)
}

// joinAll joins every thread concurrently. There is no timeout: a worker
// that ignores its interrupt keeps joinAll waiting.
func (d *deployment) joinAll() error {
	var g errgroup.Group
	for _, spec := range d.threads {
		spec := spec
		g.Go(func() error {
			err := d.reg.Join(spec.RegistryID())
			if err != nil && !errors.Is(err, thread.ErrNotStarted) {
				return fmt.Errorf("join %s: %w", spec.Label(), err)
			}
			return nil
		})
	}
	return g.Wait()
}

// stop interrupts and joins every thread.
func (d *deployment) stop() error {
	if err := d.interruptAll(); err != nil {
		return err
	}
	return d.joinAll()
}

// teardown unregisters every thread and closes the registry. Threads that
// are still running are interrupted and joined by the registry.
func (d *deployment) teardown() error {
	var errs []error
	for _, spec := range d.threads {
		err := d.reg.Unregister(spec.RegistryID())
		if err != nil && !errors.Is(err, thread.ErrDestroyedWhileRunning) {
			errs = append(errs, fmt.Errorf("unregister %s: %w", spec.Label(), err))
		}
	}
	if err := d.reg.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (d *deployment) report(out io.Writer) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tBACKEND\tSTATE\tINTERRUPTED\tSTATUS\tTICKS\tCLEANUPS\tELAPSED")
	for _, info := range d.reg.Snapshot() {
		var stats worker.Stats
		if reporter, ok := d.workers[info.ID].(worker.Reporter); ok {
			stats = reporter.Stats()
		}
		elapsed := "-"
		if stats.Elapsed > 0 {
			elapsed = stats.Elapsed.Round(time.Millisecond).String()
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%t\t%d\t%d\t%d\t%s\n",
			info.ID, info.Name, info.Backend, info.State, info.Interrupted,
			info.StatusCode, stats.Ticks, stats.Cleanups, elapsed)
	}
	_ = tw.Flush()
}
