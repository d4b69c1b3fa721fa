// Package schedule submits commands to a pool on cron schedules.
//
// A Feeder wraps a cron runner. Each registered entry holds a Factory that
// builds a new command per tick; the command is handed to the pool's Submit,
// so it is partitioned and routed like any other submission:
//
//	f := schedule.New(p, schedule.WithMetrics(reg))
//	f.Add("*/5 * * * *", "compact", func() command.Command {
//		return newCompaction(shards)
//	})
//	f.Start()
//	defer func() { <-f.Stop().Done() }()
//
// Rejected or failed submissions are logged and counted; they never stop the
// schedule.
package schedule
