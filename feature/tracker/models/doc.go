// Package models defines the persisted entities tracked from the simulation
// backend and their display-ready view projections.
//
// Entities carry a stable internal uuid, the foreign identifier assigned by
// the upstream system, and an Active flag. Entities are never hard-deleted on
// removal; they are deactivated so historic journeys stay queryable while the
// live pipeline only ever loads active rows.
//
// Views are the denormalized shape held in the consumer snapshot cache and
// returned to API clients. Each view knows how to apply the update frames of
// its kind, mutating only the attributes present in the frame.
package models
