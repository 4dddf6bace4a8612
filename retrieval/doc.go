// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package retrieval produces the initial candidate set for a query.
//
// Hybrid combines two signals:
//   - Vector similarity between the query embedding and chunk embeddings
//   - BM25 lexical relevance with stop-word filtering
//
// GraphExpander then follows one hop of document relationships to recover
// passages from cited, co-authored or similar documents.
package retrieval
