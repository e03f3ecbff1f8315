// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

package lua

import (
	"net/http"

	lua "github.com/yuin/gopher-lua"
)

// installAPI exposes the host to scripts:
//
//	api.get(path, fn)  api.post(path, fn)  api.put(path, fn)  api.delete(path, fn)
//	events.register(name)  events.publish(name, data)
//	log.debug(msg)  log.info(msg)  log.warn(msg)  log.error(msg)
//
// Route functions receive a request table and return (body, status).
func (e *Extension) installAPI() {
	L := e.L

	api := L.NewTable()
	for name, method := range map[string]string{
		"get":    http.MethodGet,
		"post":   http.MethodPost,
		"put":    http.MethodPut,
		"delete": http.MethodDelete,
	} {
		L.SetField(api, name, L.NewFunction(e.declareRoute(method)))
	}
	L.SetGlobal("api", api)

	events := L.NewTable()
	L.SetField(events, "register", L.NewFunction(e.registerEvent))
	L.SetField(events, "publish", L.NewFunction(e.publishEvent))
	L.SetGlobal("events", events)

	logTable := L.NewTable()
	L.SetField(logTable, "debug", L.NewFunction(e.logAt(e.logger.Debug)))
	L.SetField(logTable, "info", L.NewFunction(e.logAt(e.logger.Info)))
	L.SetField(logTable, "warn", L.NewFunction(e.logAt(e.logger.Warn)))
	L.SetField(logTable, "error", L.NewFunction(e.logAt(e.logger.Error)))
	L.SetGlobal("log", logTable)
}

func (e *Extension) declareRoute(method string) lua.LGFunction {
	return func(L *lua.LState) int {
		path := L.CheckString(1)
		fn := L.CheckFunction(2)
		e.routes = append(e.routes, routeSpec{method: method, path: path, fn: fn})
		return 0
	}
}

func (e *Extension) registerEvent(L *lua.LState) int {
	e.events = append(e.events, L.CheckString(1))
	return 0
}

func (e *Extension) publishEvent(L *lua.LState) int {
	name := L.CheckString(1)
	data := toGo(L.Get(2))
	if e.publisher == nil {
		e.logger.Debug("no publisher configured, dropping event", "event_type", name)
		return 0
	}
	e.publisher.Publish(name, data)
	return 0
}

func (e *Extension) logAt(fn func(msg string, args ...any)) lua.LGFunction {
	return func(L *lua.LState) int {
		fn(L.CheckString(1))
		return 0
	}
}
