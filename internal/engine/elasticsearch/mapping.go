package elasticsearch

// DefaultIndexName is the default Elasticsearch index used for item documents.
const DefaultIndexName = "catalog_items"

// indexMapping is the mapping for the items index. name is analyzed text
// with a search_as_you_type sub-field for prefix suggestions; category keeps
// an exact keyword copy for filtering.
const indexMapping = `{
  "settings": {
    "number_of_shards": 1,
    "number_of_replicas": 0
  },
  "mappings": {
    "properties": {
      "id":          { "type": "keyword" },
      "name":        { "type": "text", "fields": { "auto_complete": { "type": "search_as_you_type" } } },
      "description": { "type": "text" },
      "category":    { "type": "text", "fields": { "raw": { "type": "keyword" } } },
      "price":       { "type": "long" },
      "rating":      { "type": "double" }
    }
  }
}`
