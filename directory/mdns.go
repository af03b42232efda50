package directory

import (
	"context"
	"fmt"
	"time"

	"github.com/grandcat/zeroconf"
)

// StartMDNSBrowser browses DNS-SD for the common printer service types and
// invokes enqueue for every discovered IPv4 address. It runs until the
// context is canceled; the caller de-duplicates IPs.
func (d *Directory) StartMDNSBrowser(ctx context.Context, enqueue func(ip string) bool) {
	svcTypes := []string{"_ipp._tcp", "_ipps._tcp", "_printer._tcp"}
	for _, st := range svcTypes {
		st := st
		go func() {
			resolver, err := zeroconf.NewResolver(nil)
			if err != nil {
				d.log.Warn("mDNS resolver error: " + err.Error())
				return
			}
			entries := make(chan *zeroconf.ServiceEntry)
			go func() {
				for {
					select {
					case <-ctx.Done():
						return
					case e, ok := <-entries:
						if !ok {
							return
						}
						for _, ip := range e.AddrIPv4 {
							_ = enqueue(ip.String())
						}
					}
				}
			}()
			d.log.Debug(fmt.Sprintf("mDNS browse start: %s", st))
			if err := resolver.Browse(ctx, st, "local.", entries); err != nil {
				d.log.Warn("mDNS browse error: " + err.Error())
			}
			// Browse closed the channel; give the consumer a beat to drain.
			time.Sleep(100 * time.Millisecond)
		}()
	}
}
