// Package cmd provides common initialization functions for command-line
// applications.
package cmd

import (
	"log/slog"

	"github.com/credenflow/credenflow/pkg/nodes/approval"
	"github.com/credenflow/credenflow/pkg/nodes/condition"
	"github.com/credenflow/credenflow/pkg/nodes/database"
	"github.com/credenflow/credenflow/pkg/nodes/email"
	"github.com/credenflow/credenflow/pkg/nodes/end"
	"github.com/credenflow/credenflow/pkg/nodes/form"
	"github.com/credenflow/credenflow/pkg/nodes/function"
	"github.com/credenflow/credenflow/pkg/nodes/join"
	"github.com/credenflow/credenflow/pkg/nodes/ocr"
	"github.com/credenflow/credenflow/pkg/nodes/signature"
	"github.com/credenflow/credenflow/pkg/nodes/start"
	"github.com/credenflow/credenflow/pkg/nodes/webhook"
	"github.com/credenflow/credenflow/pkg/registry"
)

// NewRegistry builds a registry with every built-in node type registered.
func NewRegistry(log *slog.Logger) *registry.Registry {
	reg := registry.NewRegistry(log)

	reg.Register(start.NewFactory())
	reg.Register(end.NewFactory())
	reg.Register(condition.NewFactory())
	reg.Register(join.NewFactory())
	reg.Register(form.NewFactory())
	reg.Register(approval.NewFactory())
	reg.Register(signature.NewFactory())
	reg.Register(email.NewFactory())
	reg.Register(webhook.NewFactory())
	reg.Register(database.NewFactory())
	reg.Register(ocr.NewFactory())
	reg.Register(function.NewFactory())

	return reg
}
