//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2026 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

// fetchers.go wires the two outbound RPC boundaries of spec.md §6 —
// sudoRetrieveThing (signal enrichment) and loadPolicy (policy loader) —
// both named external collaborators, same as the inbound cluster bus.
// Only the ask-with-retry boundary (usecases/clusterbus.AskWithRetry) is
// implemented here; a real deployment points these at an actual things/
// policies service. A small in-memory fixture set is provided for
// --demo runs, mirroring adapters/clients/cluster's in-memory test
// double for the inbound side.
package main

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/ATNoG/eclipse-ditto/entities/models"
	"github.com/ATNoG/eclipse-ditto/entities/twinid"
	"github.com/ATNoG/eclipse-ditto/usecases/clusterbus"
	"github.com/ATNoG/eclipse-ditto/usecases/enrichment"
	"github.com/ATNoG/eclipse-ditto/usecases/policy"
)

var errOutboundNotImplemented = errors.New("twinupdated: production sudoRetrieveThing/loadPolicy transport not wired, see spec §1")
var errFixtureNotFound = errors.New("twinupdated: no demo fixture for this id")

// demoFixtures is a tiny static dataset used with --demo, standing in
// for the things and policies services.
type demoFixtures struct {
	twins    map[twinid.ID]*models.Twin
	policies map[twinid.ID]models.Policy
}

func newDemoFixtures() *demoFixtures {
	twinID, _ := twinid.Parse("org.eclipse.ditto:demo-twin")
	policyID, _ := twinid.Parse("org.eclipse.ditto:demo-policy")

	return &demoFixtures{
		twins: map[twinid.ID]*models.Twin{
			twinID: {
				TwinID:     twinID,
				PolicyID:   policyID,
				Revision:   1,
				Attributes: map[string]any{"serial": "demo-0001"},
				Features: map[string]*models.Feature{
					"temperature": {Properties: map[string]any{"value": 21.5}},
				},
				Modified: time.Now(),
			},
		},
		policies: map[twinid.ID]models.Policy{
			policyID: {
				Revision: 1,
				Entries: []models.PolicyEntry{{
					Subjects: []string{"nginx:ditto"},
					Targets: []models.PolicyTarget{{
						ResourceType:    "thing",
						ResourcePointer: "/",
						Grant:           models.GrantAllow,
						Permissions:     []models.Permission{models.PermissionRead, models.PermissionWrite},
					}},
				}},
			},
		},
	}
}

// newThingFetcher builds the enrichment facade's FullFetcher over
// AskWithRetry. fixtures == nil means the production, not-implemented
// boundary.
func newThingFetcher(cfg clusterbus.AskConfig, fixtures *demoFixtures) enrichment.FullFetcher {
	return func(ctx context.Context, twinID twinid.ID) (*models.Twin, bool, error) {
		ask := clusterbus.AskFunc[*models.Twin](func(ctx context.Context, correlationID string) (*models.Twin, error) {
			if fixtures == nil {
				return nil, errOutboundNotImplemented
			}
			twin, ok := fixtures.twins[twinID]
			if !ok {
				return nil, errFixtureNotFound
			}
			return twin, nil
		})

		twin, err := clusterbus.AskWithRetry(ctx, cfg, ask)
		if err != nil {
			if errors.Is(err, errFixtureNotFound) {
				return nil, false, nil
			}
			return nil, false, err
		}
		return twin, true, nil
	}
}

// newPolicyFetcher builds the policy cache's PolicyLoader over
// AskWithRetry, the same way newThingFetcher does for things.
func newPolicyFetcher(cfg clusterbus.AskConfig, fixtures *demoFixtures) policy.PolicyLoader {
	return func(ctx context.Context, policyID twinid.ID) (models.Policy, bool, error) {
		ask := clusterbus.AskFunc[models.Policy](func(ctx context.Context, correlationID string) (models.Policy, error) {
			if fixtures == nil {
				return models.Policy{}, errOutboundNotImplemented
			}
			p, ok := fixtures.policies[policyID]
			if !ok {
				return models.Policy{}, errFixtureNotFound
			}
			return p, nil
		})

		p, err := clusterbus.AskWithRetry(ctx, cfg, ask)
		if err != nil {
			if errors.Is(err, errFixtureNotFound) {
				return models.Policy{}, false, nil
			}
			return models.Policy{}, false, err
		}
		return p, true, nil
	}
}
