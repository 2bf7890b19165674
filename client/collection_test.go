// Datalith - Typed Go Client for the Data API and DevOps API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/datalith

package client

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/tomtom215/datalith/apierr"
	"github.com/tomtom215/datalith/datatypes"
)

// idsOf pulls the _id of every document in an insert payload.
func idsOf(args Document) []any {
	docs, _ := args["documents"].([]any)
	out := make([]any, 0, len(docs))
	for _, d := range docs {
		m, _ := d.(map[string]any)
		out = append(out, m["_id"])
	}
	return out
}

func TestInsertOneReturnsID(t *testing.T) {
	coll, _, _ := newTestCollection(t, func(command string, args Document) any {
		if command != "insertOne" {
			t.Errorf("command = %s", command)
		}
		doc, _ := args["document"].(map[string]any)
		return Document{"status": Document{"insertedIds": []any{doc["_id"]}}}
	})

	res, err := coll.InsertOne(context.Background(), Document{"_id": "a", "n": 1})
	if err != nil {
		t.Fatalf("insertOne: %v", err)
	}
	if res.InsertedID != "a" {
		t.Errorf("insertedID = %v", res.InsertedID)
	}
}

func TestInsertManyOrderedStopsAtFirstFailure(t *testing.T) {
	var chunks callCounter
	coll, _, _ := newTestCollection(t, func(command string, args Document) any {
		n := chunks.add()
		ids := idsOf(args)
		if n == 2 {
			// Second chunk fails after landing its first document.
			return Document{
				"status": Document{"insertedIds": ids[:1]},
				"errors": []Document{{"message": "DOCUMENT_ALREADY_EXISTS"}},
			}
		}
		return Document{"status": Document{"insertedIds": ids}}
	})

	docs := []Document{
		{"_id": "a"}, {"_id": "b"}, {"_id": "c"}, {"_id": "d"}, {"_id": "e"},
	}
	res, err := coll.InsertMany(context.Background(), docs,
		&InsertManyOptions{Ordered: true, ChunkSize: 2})

	var respErr *apierr.ResponseError
	if !errors.As(err, &respErr) {
		t.Fatalf("want ResponseError, got %v", err)
	}
	// First chunk fully landed, plus the failing chunk's partial ack.
	if len(res.InsertedIDs) != 3 {
		t.Errorf("insertedIDs = %v", res.InsertedIDs)
	}
	if chunks.n != 2 {
		t.Errorf("chunks sent = %d, want 2 (ordered stops at first failure)", chunks.n)
	}
}

func TestInsertManyUnorderedCollectsAllIDs(t *testing.T) {
	coll, _, calls := newTestCollection(t, func(command string, args Document) any {
		return Document{"status": Document{"insertedIds": idsOf(args)}}
	})

	docs := []Document{
		{"_id": "a"}, {"_id": "b"}, {"_id": "c"}, {"_id": "d"}, {"_id": "e"},
	}
	res, err := coll.InsertMany(context.Background(), docs,
		&InsertManyOptions{ChunkSize: 2, Concurrency: 2})
	if err != nil {
		t.Fatalf("insertMany: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("requests = %d, want 3", calls.Load())
	}
	got := make([]string, 0, len(res.InsertedIDs))
	for _, id := range res.InsertedIDs {
		got = append(got, id.(string))
	}
	sort.Strings(got)
	if strings.Join(got, "") != "abcde" {
		t.Errorf("ids = %v", got)
	}
}

func TestInsertManyDeserializesTypedIDs(t *testing.T) {
	coll, _, _ := newTestCollection(t, func(command string, args Document) any {
		if command != "insertMany" {
			t.Errorf("command = %s", command)
		}
		// Echo back the wire-form ids ({"$uuid": ...}) as the server would.
		return Document{"status": Document{"insertedIds": idsOf(args)}}
	})

	want := []datatypes.UUID{
		datatypes.NewUUIDv4(), datatypes.NewUUIDv4(), datatypes.NewUUIDv4(),
	}
	docs := make([]Document, len(want))
	for i, id := range want {
		docs[i] = Document{"_id": id, "n": i}
	}

	res, err := coll.InsertMany(context.Background(), docs, &InsertManyOptions{Ordered: true})
	if err != nil {
		t.Fatalf("insertMany: %v", err)
	}
	if len(res.InsertedIDs) != len(want) {
		t.Fatalf("insertedIDs = %v", res.InsertedIDs)
	}
	for i, got := range res.InsertedIDs {
		id, ok := got.(datatypes.UUID)
		if !ok {
			t.Fatalf("id[%d] = %T (%v), want datatypes.UUID", i, got, got)
		}
		if !id.Equal(want[i]) {
			t.Errorf("id[%d] = %s, want %s", i, id, want[i])
		}
	}
}

func TestDeleteManyLoopsWhileMoreData(t *testing.T) {
	var rounds callCounter
	coll, _, _ := newTestCollection(t, func(command string, args Document) any {
		if rounds.add() < 3 {
			return Document{"status": Document{"deletedCount": 20, "moreData": true}}
		}
		return Document{"status": Document{"deletedCount": 5}}
	})

	res, err := coll.DeleteMany(context.Background(), Document{"kind": "old"})
	if err != nil {
		t.Fatalf("deleteMany: %v", err)
	}
	if res.DeletedCount != 45 {
		t.Errorf("deletedCount = %d, want 45", res.DeletedCount)
	}
	if rounds.n != 3 {
		t.Errorf("rounds = %d", rounds.n)
	}
}

func TestCountDocuments(t *testing.T) {
	var status Document
	coll, _, _ := newTestCollection(t, func(command string, args Document) any {
		return Document{"status": status}
	})

	status = Document{"count": 3}
	n, err := coll.CountDocuments(context.Background(), Document{}, 100)
	if err != nil || n != 3 {
		t.Fatalf("count = %d, err = %v", n, err)
	}

	// The server gave up counting; the true count is unknown.
	status = Document{"count": 1000, "moreData": true}
	if _, err := coll.CountDocuments(context.Background(), Document{}, 10000); err == nil {
		t.Error("moreData count must fail")
	}

	status = Document{"count": 101}
	if _, err := coll.CountDocuments(context.Background(), Document{}, 100); err == nil {
		t.Error("count above the bound must fail")
	}

	if _, err := coll.CountDocuments(context.Background(), Document{}, 0); err == nil {
		t.Error("non-positive bound must fail")
	}
}

func TestUpdateOneUpsert(t *testing.T) {
	var sentOptions Document
	coll, _, _ := newTestCollection(t, func(command string, args Document) any {
		if command != "updateOne" {
			t.Errorf("command = %s", command)
		}
		sentOptions, _ = args["options"].(map[string]any)
		return Document{"status": Document{
			"matchedCount":  0,
			"modifiedCount": 0,
			"upsertedId":    "u1",
		}}
	})

	res, err := coll.UpdateOne(context.Background(),
		Document{"_id": "u1"},
		Document{"$set": Document{"n": 1}},
		&UpdateOptions{Upsert: true})
	if err != nil {
		t.Fatalf("updateOne: %v", err)
	}
	if res.MatchedCount != 0 || res.ModifiedCount != 0 || res.UpsertedID != "u1" {
		t.Errorf("result = %+v", res)
	}
	if up, _ := sentOptions["upsert"].(bool); !up {
		t.Error("upsert option not sent")
	}
}

func TestFindOneAndDelete(t *testing.T) {
	var present bool
	coll, _, _ := newTestCollection(t, func(command string, args Document) any {
		if command != "findOneAndDelete" {
			t.Errorf("command = %s", command)
		}
		if !present {
			return Document{"data": Document{"document": nil}}
		}
		return Document{"data": Document{"document": Document{"_id": "x", "n": 1}}}
	})

	present = true
	doc, found, err := coll.FindOneAndDelete(context.Background(), Document{"_id": "x"}, nil)
	if err != nil || !found {
		t.Fatalf("findOneAndDelete: found=%v err=%v", found, err)
	}
	if doc["_id"] != "x" {
		t.Errorf("doc = %v", doc)
	}

	present = false
	_, found, err = coll.FindOneAndDelete(context.Background(), Document{"_id": "y"}, nil)
	if err != nil || found {
		t.Fatalf("missing doc: found=%v err=%v", found, err)
	}
}

func TestReplaceOneReportsCounts(t *testing.T) {
	coll, _, _ := newTestCollection(t, func(command string, args Document) any {
		if command != "findOneAndReplace" {
			t.Errorf("command = %s", command)
		}
		opts, _ := args["options"].(map[string]any)
		if opts["returnDocument"] != "before" {
			t.Errorf("options = %v", opts)
		}
		return Document{
			"data":   Document{"document": Document{"_id": "x"}},
			"status": Document{"matchedCount": 1, "modifiedCount": 1},
		}
	})

	res, err := coll.ReplaceOne(context.Background(),
		Document{"_id": "x"}, Document{"n": 2}, nil)
	if err != nil {
		t.Fatalf("replaceOne: %v", err)
	}
	if res.MatchedCount != 1 || res.ModifiedCount != 1 {
		t.Errorf("result = %+v", res)
	}
}

// callCounter is a tiny mutex counter for handlers that branch on call number.
type callCounter struct {
	mu sync.Mutex
	n  int
}

func (a *callCounter) add() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.n++
	return a.n
}
