/*
Package subscription implements the capability bitmask used to route commands
to workers.

Each worker slot of a pool advertises a Subscription, and every command
carries a Subscription naming the groups it requires. A worker is eligible
for a command when its Subscription Accepts the command's requirement:

	gpu := subscription.Groups(subscription.DefaultWidth, 3)
	worker := subscription.Groups(subscription.DefaultWidth, 0, 3)
	worker.Accepts(gpu) // true

	unrestricted := subscription.New(subscription.DefaultWidth)
	worker.Accepts(unrestricted) // false: only all-zero workers take all-zero commands

Group indexes at or beyond the width are programming errors and panic.
*/
package subscription
