package main

import (
	"context"
	"fmt"
	"time"

	"github.com/kardianos/service"
)

// program implements service.Interface
type program struct {
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	svcLogger service.Logger
}

func (p *program) Start(s service.Service) error {
	p.svcLogger, _ = s.Logger(nil)
	if p.svcLogger != nil {
		p.svcLogger.Info("AllPress service starting")
	}

	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.done = make(chan struct{})

	go p.run()
	return nil
}

func (p *program) run() {
	defer close(p.done)
	runInteractive(p.ctx, "")
}

func (p *program) Stop(s service.Service) error {
	if p.cancel != nil {
		p.cancel()
	}

	timeout := time.After(30 * time.Second)
	select {
	case <-p.done:
		if p.svcLogger != nil {
			p.svcLogger.Info("AllPress service stopped gracefully")
		}
	case <-timeout:
		if p.svcLogger != nil {
			p.svcLogger.Warning("AllPress service stopped with timeout")
		}
	}
	return nil
}

func serviceConfig() *service.Config {
	return &service.Config{
		Name:        "allpress",
		DisplayName: "AllPress Print Orchestrator",
		Description: "Manages print queues and plotter protocol translation",
	}
}

// handleServiceAction installs, removes or controls the platform service.
func handleServiceAction(action string) error {
	prg := &program{}
	svc, err := service.New(prg, serviceConfig())
	if err != nil {
		return err
	}

	switch action {
	case "install":
		return svc.Install()
	case "uninstall":
		return svc.Uninstall()
	case "start":
		return svc.Start()
	case "stop":
		return svc.Stop()
	case "run":
		return svc.Run()
	default:
		return fmt.Errorf("unknown service action %q", action)
	}
}
