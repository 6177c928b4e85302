package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/unnshoyuukou4515/izakaya-checkin/internal/core/domain"
	"github.com/unnshoyuukou4515/izakaya-checkin/internal/core/usecases"
)

func stationMap(s domain.Station) map[string]interface{} {
	return map[string]interface{}{
		"name":      s.Name,
		"latitude":  s.Latitude,
		"longitude": s.Longitude,
	}
}

func conquestMap(c domain.Conquest) map[string]interface{} {
	return map[string]interface{}{
		"id":           c.ID,
		"user_id":      c.UserID,
		"station":      c.Station,
		"venue_count":  c.VenueCount,
		"conquered_at": c.ConqueredAt.Format(time.RFC3339),
	}
}

// viewMap flattens a view for the default resolver, which does not walk
// embedded structs.
func viewMap(v domain.View) map[string]interface{} {
	venues := make([]map[string]interface{}, 0, len(v.Venues))
	for _, vv := range v.Venues {
		venues = append(venues, map[string]interface{}{
			"id":         vv.ID,
			"name":       vv.Name,
			"lat":        vv.Lat,
			"lng":        vv.Lng,
			"photo_url":  vv.PhotoURL,
			"page_url":   vv.PageURL,
			"visited":    vv.Visited,
			"distance_m": vv.Distance,
		})
	}
	m := map[string]interface{}{
		"session_id":      v.SessionID,
		"user_id":         v.Identity.UserID,
		"username":        v.Identity.Username,
		"epoch":           int(v.Epoch),
		"revision":        int(v.Revision),
		"station":         v.Station,
		"pending_station": v.PendingStation,
		"center":          map[string]interface{}{"lat": v.Center.Lat, "lng": v.Center.Lng},
		"venues":          venues,
		"visited_ids":     v.VisitedIDs,
		"submitting":      v.Submitting,
		"loading_venues":  v.LoadingVenues,
		"loading_visited": v.LoadingVisited,
		"conquered":       v.Conquered,
	}
	if v.PendingVisit != nil {
		m["pending_visit"] = map[string]interface{}{
			"venue_id": v.PendingVisit.VenueID,
			"rating":   v.PendingVisit.Rating,
		}
	}
	return m
}

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	coordinateType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Coordinate",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lng": &graphql.Field{Type: graphql.Float},
		},
	})

	stationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Station",
		Fields: graphql.Fields{
			"name":      &graphql.Field{Type: graphql.String},
			"latitude":  &graphql.Field{Type: graphql.Float},
			"longitude": &graphql.Field{Type: graphql.Float},
		},
	})

	venueType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Venue",
		Fields: graphql.Fields{
			"id":         &graphql.Field{Type: graphql.String},
			"name":       &graphql.Field{Type: graphql.String},
			"lat":        &graphql.Field{Type: graphql.Float},
			"lng":        &graphql.Field{Type: graphql.Float},
			"photo_url":  &graphql.Field{Type: graphql.String},
			"page_url":   &graphql.Field{Type: graphql.String},
			"visited":    &graphql.Field{Type: graphql.Boolean},
			"distance_m": &graphql.Field{Type: graphql.Float},
		},
	})

	pendingVisitType := graphql.NewObject(graphql.ObjectConfig{
		Name: "PendingVisit",
		Fields: graphql.Fields{
			"venue_id": &graphql.Field{Type: graphql.String},
			"rating":   &graphql.Field{Type: graphql.Int},
		},
	})

	viewType := graphql.NewObject(graphql.ObjectConfig{
		Name: "View",
		Fields: graphql.Fields{
			"session_id":      &graphql.Field{Type: graphql.String},
			"user_id":         &graphql.Field{Type: graphql.String},
			"username":        &graphql.Field{Type: graphql.String},
			"epoch":           &graphql.Field{Type: graphql.Int},
			"revision":        &graphql.Field{Type: graphql.Int},
			"station":         &graphql.Field{Type: graphql.String},
			"pending_station": &graphql.Field{Type: graphql.String},
			"center":          &graphql.Field{Type: coordinateType},
			"venues":          &graphql.Field{Type: graphql.NewList(venueType)},
			"visited_ids":     &graphql.Field{Type: graphql.NewList(graphql.String)},
			"pending_visit":   &graphql.Field{Type: pendingVisitType},
			"submitting":      &graphql.Field{Type: graphql.Boolean},
			"loading_venues":  &graphql.Field{Type: graphql.Boolean},
			"loading_visited": &graphql.Field{Type: graphql.Boolean},
			"conquered":       &graphql.Field{Type: graphql.Boolean},
		},
	})

	conquestType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Conquest",
		Fields: graphql.Fields{
			"id":           &graphql.Field{Type: graphql.String},
			"user_id":      &graphql.Field{Type: graphql.String},
			"station":      &graphql.Field{Type: graphql.String},
			"venue_count":  &graphql.Field{Type: graphql.Int},
			"conquered_at": &graphql.Field{Type: graphql.String},
		},
	})

	sessionArg := graphql.FieldConfigArgument{
		"session_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
	}
	withSession := func(extra graphql.FieldConfigArgument) graphql.FieldConfigArgument {
		args := graphql.FieldConfigArgument{}
		for k, v := range sessionArg {
			args[k] = v
		}
		for k, v := range extra {
			args[k] = v
		}
		return args
	}

	// intent resolves the session, applies fn, and returns the new view.
	intent := func(fn func(ctx context.Context, sess *usecases.Session, args map[string]interface{}) error) graphql.FieldResolveFn {
		return func(p graphql.ResolveParams) (interface{}, error) {
			id, _ := p.Args["session_id"].(string)
			sess, err := deps.Sessions.Get(id)
			if err != nil {
				return nil, err
			}
			if err := fn(p.Context, sess, p.Args); err != nil {
				return nil, err
			}
			return viewMap(sess.View()), nil
		}
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"stations": &graphql.Field{
				Type: graphql.NewList(stationType),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					all := deps.Catalog.All()
					out := make([]map[string]interface{}, 0, len(all))
					for _, s := range all {
						out = append(out, stationMap(s))
					}
					return out, nil
				},
			},
			"station": &graphql.Field{
				Type: stationType,
				Args: graphql.FieldConfigArgument{
					"name": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					name, _ := p.Args["name"].(string)
					s, ok := deps.Catalog.Find(name)
					if !ok {
						return nil, nil
					}
					return stationMap(s), nil
				},
			},
			"session": &graphql.Field{
				Type: viewType,
				Args: sessionArg,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id, _ := p.Args["session_id"].(string)
					sess, err := deps.Sessions.Get(id)
					if err != nil {
						return nil, err
					}
					return viewMap(sess.View()), nil
				},
			},
			"conquests": &graphql.Field{
				Type: graphql.NewList(conquestType),
				Args: graphql.FieldConfigArgument{
					"user_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if deps.Conquests == nil {
						return []map[string]interface{}{}, nil
					}
					userID, _ := p.Args["user_id"].(string)
					list, err := deps.Conquests.ListByUser(p.Context, userID)
					if err != nil {
						return nil, err
					}
					out := make([]map[string]interface{}, 0, len(list))
					for _, c := range list {
						out = append(out, conquestMap(c))
					}
					return out, nil
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"openSession": &graphql.Field{
				Type: viewType,
				Args: graphql.FieldConfigArgument{
					"user_id":  &graphql.ArgumentConfig{Type: graphql.String},
					"username": &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					userID, _ := p.Args["user_id"].(string)
					username, _ := p.Args["username"].(string)
					sess := deps.Sessions.Open(p.Context, domain.Identity{UserID: userID, Username: username})
					settle(p.Context, sess.Engine)
					return viewMap(sess.View()), nil
				},
			},
			"selectStation": &graphql.Field{
				Type: viewType,
				Args: withSession(graphql.FieldConfigArgument{
					"name": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				}),
				Resolve: intent(func(_ context.Context, sess *usecases.Session, args map[string]interface{}) error {
					name, _ := args["name"].(string)
					return sess.Engine.SelectStation(name)
				}),
			},
			"confirmSelection": &graphql.Field{
				Type: viewType,
				Args: sessionArg,
				Resolve: intent(func(ctx context.Context, sess *usecases.Session, _ map[string]interface{}) error {
					sess.Engine.ConfirmSelection(ctx)
					settle(ctx, sess.Engine)
					return nil
				}),
			},
			"selectVenue": &graphql.Field{
				Type: viewType,
				Args: withSession(graphql.FieldConfigArgument{
					"venue_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				}),
				Resolve: intent(func(_ context.Context, sess *usecases.Session, args map[string]interface{}) error {
					id, _ := args["venue_id"].(string)
					return sess.Engine.SelectVenue(id)
				}),
			},
			"setRating": &graphql.Field{
				Type: viewType,
				Args: withSession(graphql.FieldConfigArgument{
					"rating": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				}),
				Resolve: intent(func(_ context.Context, sess *usecases.Session, args map[string]interface{}) error {
					rating, _ := args["rating"].(int)
					return sess.Engine.SetRating(rating)
				}),
			},
			"submitVisit": &graphql.Field{
				Type: viewType,
				Args: sessionArg,
				Resolve: intent(func(ctx context.Context, sess *usecases.Session, _ map[string]interface{}) error {
					return sess.Engine.SubmitVisit(ctx)
				}),
			},
			"cancelVisit": &graphql.Field{
				Type: viewType,
				Args: sessionArg,
				Resolve: intent(func(_ context.Context, sess *usecases.Session, _ map[string]interface{}) error {
					sess.Engine.CancelVisit()
					return nil
				}),
			},
			"dismissCompletion": &graphql.Field{
				Type: viewType,
				Args: sessionArg,
				Resolve: intent(func(_ context.Context, sess *usecases.Session, _ map[string]interface{}) error {
					sess.Engine.DismissCompletion()
					return nil
				}),
			},
			"closeSession": &graphql.Field{
				Type: graphql.Boolean,
				Args: sessionArg,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id, _ := p.Args["session_id"].(string)
					if err := deps.Sessions.Close(id); err != nil {
						return false, err
					}
					return true, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
