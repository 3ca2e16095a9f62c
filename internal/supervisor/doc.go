// Package supervisor runs the long-lived tasks of the bridge and shuts
// them all down when any one of them stops.
//
// Every task receives the same context. The supervisor polls for a
// finished task (or a cancelled parent context), cancels the shared
// context, and gives the remaining tasks a grace period to return.
//
// Example usage:
//
//	sup := supervisor.New(supervisor.Config{
//	    PollInterval: 5 * time.Second,
//	    GracePeriod:  10 * time.Second,
//	})
//	sup.Go("serial-reader", reader.Run)
//	sup.Go("serial-writer", writer.Run)
//
//	if err := sup.Run(ctx); err != nil {
//	    os.Exit(1)
//	}
package supervisor
