package main

import "expvar"

var (
	arenaMetrics     = expvar.NewMap("arenasv")
	arenaConns       = new(expvar.Int)
	arenaSessions    = new(expvar.Int)
	arenaBattles     = new(expvar.Int)
	arenaMessageRecv = new(expvar.Int)
	arenaMessageSent = new(expvar.Int)
	arenaTickMaxMs   = new(expvar.Int)
)

func init() {
	arenaMetrics.Set("conns", arenaConns)
	arenaMetrics.Set("sessions", arenaSessions)
	arenaMetrics.Set("battles", arenaBattles)
	arenaMetrics.Set("msg-recv", arenaMessageRecv)
	arenaMetrics.Set("msg-sent", arenaMessageSent)
	arenaMetrics.Set("tick-maxms", arenaTickMaxMs)
}
