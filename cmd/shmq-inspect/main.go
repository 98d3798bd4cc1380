// shmq-inspect prints the header of one or more named queue segments
// without attaching to them.
//
//	shmq-inspect /omnirt_rpc_req_pingpong /omnirt_rpc_resp_pingpong
//	shmq-inspect -watch -interval 500ms /sensor_feed
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/omnirt/shmq/pkg/queue"
)

func main() {
	watch := flag.Bool("watch", false, "re-read the header until interrupted")
	interval := flag.Duration("interval", time.Second, "delay between reads with -watch")
	flag.Parse()

	names := flag.Args()
	if len(names) == 0 {
		fmt.Fprintln(os.Stderr, "usage: shmq-inspect [-watch] [-interval d] /segment-name ...")
		os.Exit(2)
	}

	for {
		failed := false
		for _, name := range names {
			info, err := queue.InspectSegment(name)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				failed = true
				continue
			}
			fmt.Println(info)
		}
		if !*watch {
			if failed {
				os.Exit(1)
			}
			return
		}
		time.Sleep(*interval)
	}
}
