package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"vivariumcore/internal/core"
	"vivariumcore/pkg/domain"
)

// buildingManifest is the document accepted by "building create".
type buildingManifest struct {
	ID             string                        `json:"id"`
	Name           string                        `json:"name"`
	Description    *string                       `json:"description"`
	Type           domain.BuildingType           `json:"type"`
	Status         domain.BuildingStatus         `json:"status"`
	FacilityID     string                        `json:"facilityId"`
	Address        domain.Address                `json:"address"`
	Specifications domain.Specifications         `json:"specifications"`
	Configuration  *domain.BuildingConfiguration `json:"configuration"`
}

func (m buildingManifest) building(preset domain.Preset, now core.Clock) domain.Building {
	cfg := domain.BuildingConfigurationPreset(preset)
	if m.Configuration != nil {
		cfg = *m.Configuration
	}
	return domain.NewBuilding(domain.BuildingFields{
		ID:             m.ID,
		Name:           m.Name,
		Description:    m.Description,
		Type:           m.Type,
		Status:         m.Status,
		FacilityID:     m.FacilityID,
		Address:        m.Address,
		Specifications: m.Specifications,
		Configuration:  &cfg,
	}, now.Now())
}

func newBuildingCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "building",
		Aliases: []string{"buildings"},
		Short:   "Create, inspect and modify buildings",
	}
	cmd.AddCommand(
		newBuildingListCommand(a),
		newBuildingGetCommand(a),
		newBuildingCreateCommand(a),
		newBuildingUpdateCommand(a),
		newBuildingDeleteCommand(a),
		newBuildingConfigureCommand(a),
	)
	return cmd
}

func newBuildingListCommand(a *app) *cobra.Command {
	var facilityID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List buildings in insertion order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := a.facilityManager(cmd.Context())
			if err != nil {
				return err
			}
			if facilityID != "" {
				return a.print(m.BuildingsForFacility(facilityID))
			}
			return a.print(m.Buildings())
		},
	}
	cmd.Flags().StringVar(&facilityID, "facility", "", "only buildings owned by this facility")
	return cmd
}

func newBuildingGetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show one building",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.facilityManager(cmd.Context())
			if err != nil {
				return err
			}
			b, ok := m.Building(args[0])
			if !ok {
				return &domain.NotFoundError{Entity: domain.EntityBuilding, ID: args[0]}
			}
			return a.print(b)
		},
	}
}

func newBuildingCreateCommand(a *app) *cobra.Command {
	var (
		file       string
		facilityID string
	)
	cmd := &cobra.Command{
		Use:   "create -f FILE",
		Short: "Create a building from a YAML or JSON manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var manifest buildingManifest
			if err := a.readManifest(file, &manifest); err != nil {
				return err
			}
			if facilityID != "" {
				manifest.FacilityID = facilityID
			}
			m, err := a.facilityManager(cmd.Context())
			if err != nil {
				return err
			}
			b, res, err := m.CreateBuilding(cmd.Context(), manifest.building(a.cfg.FacilityPreset(), m))
			if err != nil {
				return err
			}
			a.reportResult(res)
			return a.print(b)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "manifest path, or - for stdin")
	cmd.Flags().StringVar(&facilityID, "facility", "", "owning facility, overrides the manifest")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newBuildingUpdateCommand(a *app) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "update ID -f FILE",
		Short: "Overlay manifest fields onto an existing building",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.facilityManager(cmd.Context())
			if err != nil {
				return err
			}
			b, ok := m.Building(args[0])
			if !ok {
				return &domain.NotFoundError{Entity: domain.EntityBuilding, ID: args[0]}
			}
			if err := a.readManifest(file, &b); err != nil {
				return err
			}
			b.ID = args[0]
			updated, res, err := m.UpdateBuilding(cmd.Context(), b)
			if err != nil {
				return err
			}
			a.reportResult(res)
			return a.print(updated)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "manifest path, or - for stdin")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newBuildingDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a building",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.facilityManager(cmd.Context())
			if err != nil {
				return err
			}
			res, err := m.DeleteBuilding(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			a.reportResult(res)
			fmt.Fprintf(a.stdout, "deleted building %s\n", args[0])
			return nil
		},
	}
}

func newBuildingConfigureCommand(a *app) *cobra.Command {
	var (
		preset string
		file   string
	)
	cmd := &cobra.Command{
		Use:   "configure ID (--preset NAME | -f FILE)",
		Short: "Replace a building's configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := a.cfg.FacilityPreset()
			if preset != "" {
				parsed, err := domain.ParsePreset(preset)
				if err != nil {
					return err
				}
				p = parsed
			}
			cfg := domain.BuildingConfigurationPreset(p)
			if file != "" {
				if err := a.readManifest(file, &cfg); err != nil {
					return err
				}
			}
			m, err := a.facilityManager(cmd.Context())
			if err != nil {
				return err
			}
			b, res, err := m.UpdateBuildingConfiguration(cmd.Context(), args[0], cfg)
			if err != nil {
				return err
			}
			a.reportResult(res)
			return a.print(b.Configuration)
		},
	}
	cmd.Flags().StringVar(&preset, "preset", "", "preset name: "+presetNames())
	cmd.Flags().StringVarP(&file, "file", "f", "", "configuration document, fields omitted keep the preset value")
	cmd.MarkFlagsOneRequired("preset", "file")
	return cmd
}
